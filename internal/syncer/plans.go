package syncer

import (
	"github.com/tiesklinkhamer/garmin-to-notion/internal/config"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/reconcile"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// gearPaths are the places an activity may carry its equipment reference, in preference order.
var gearPaths = []string{"deviceId", "gearId", "gear.gearPk", "gear.uuid"}

func activityPlan(p config.ActivityProperties) reconcile.Plan {
	return reconcile.Plan{
		{Property: p.Name, Kind: sink.KindTitle, Paths: []string{"activityName"}, Policy: reconcile.Required},
		{Property: p.Date, Kind: sink.KindDate, Paths: []string{"startTimeLocal"}, Transform: reconcile.LocalDateTime, Policy: reconcile.Required},
		{Property: p.Distance, Kind: sink.KindNumber, Paths: []string{"distance"}, Transform: reconcile.MetersToKilometers},
		{Property: p.Duration, Kind: sink.KindNumber, Paths: []string{"duration"}},
		{Property: p.ID, Kind: sink.KindRichText, Paths: []string{"activityId"}, Transform: reconcile.CanonicalText, Policy: reconcile.Required},
		{Property: p.Sport, Kind: sink.KindSelect, Paths: []string{"activityType.typeKey"}},
		{Property: p.AvgHR, Kind: sink.KindNumber, Paths: []string{"averageHR", "avgHR"}, Transform: reconcile.Rounded(0), Policy: reconcile.OmitZero},
	}
}

// healthPlan treats zero as missing: the provider reports 0 for metrics it has not computed yet.
func healthPlan(p config.HealthProperties) reconcile.Plan {
	return reconcile.Plan{
		{Property: p.HRV, Kind: sink.KindNumber, Paths: []string{"hrvStatus.lastNightAvg", "lastNightAvg"}, Policy: reconcile.OmitZero},
		{Property: p.BodyBatteryMax, Kind: sink.KindNumber, Paths: []string{"bodyBatteryHighestValue"}, Policy: reconcile.OmitZero},
		{Property: p.BodyBatteryMin, Kind: sink.KindNumber, Paths: []string{"bodyBatteryLowestValue"}, Policy: reconcile.OmitZero},
		{Property: p.Stress, Kind: sink.KindNumber, Paths: []string{"averageStressLevel"}, Policy: reconcile.OmitZero},
		{Property: p.SleepScore, Kind: sink.KindNumber, Paths: []string{"sleepScore", "sleepScores.overall.value"}, Policy: reconcile.OmitZero},
	}
}
