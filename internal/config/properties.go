package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Properties names the sink columns written by each job. The defaults match the workspace
// template; a TOML file can rename any subset of them.
type Properties struct {
	Activities ActivityProperties `toml:"activities"`
	Gear       GearProperties     `toml:"gear"`
	Health     HealthProperties   `toml:"health"`
	Coach      CoachProperties    `toml:"coach"`
}

// ActivityProperties are the activities database columns.
type ActivityProperties struct {
	Name     string `toml:"name"`
	Date     string `toml:"date"`
	Distance string `toml:"distance"`
	Duration string `toml:"duration"`
	ID       string `toml:"id"`
	Sport    string `toml:"sport"`
	AvgHR    string `toml:"avg_hr"`
	Gear     string `toml:"gear"`

	// DistanceFallbacks are older column names still read by the coach and chart jobs.
	DistanceFallbacks []string `toml:"distance_fallbacks"`
	AvgHRFallbacks    []string `toml:"avg_hr_fallbacks"`
}

// GearProperties are the gear database columns.
type GearProperties struct {
	ID string `toml:"id"`
}

// HealthProperties are the daily health database columns.
type HealthProperties struct {
	Date           string `toml:"date"`
	HRV            string `toml:"hrv"`
	BodyBatteryMax string `toml:"body_battery_max"`
	BodyBatteryMin string `toml:"body_battery_min"`
	Stress         string `toml:"stress"`
	SleepScore     string `toml:"sleep_score"`
}

// CoachProperties are the coach report database columns.
type CoachProperties struct {
	Name          string `toml:"name"`
	Date          string `toml:"date"`
	Summary       string `toml:"summary"`
	RecoveryScore string `toml:"recovery_score"`
	ActionItem    string `toml:"action_item"`
}

// DefaultProperties returns the column names of the stock workspace template.
func DefaultProperties() Properties {
	return Properties{
		Activities: ActivityProperties{
			Name:              "Activity Name",
			Date:              "Date",
			Distance:          "Distance (km)",
			Duration:          "Duration",
			ID:                "Activity ID",
			Sport:             "Sport",
			AvgHR:             "Avg HR",
			Gear:              "Gear",
			DistanceFallbacks: []string{"Distance"},
			AvgHRFallbacks:    []string{"Average Heart Rate"},
		},
		Gear: GearProperties{ID: "Garmin Gear ID"},
		Health: HealthProperties{
			Date:           "Date",
			HRV:            "HRV (ms)",
			BodyBatteryMax: "Body Battery Max",
			BodyBatteryMin: "Body Battery Min",
			Stress:         "Stress Avg",
			SleepScore:     "Sleep Score",
		},
		Coach: CoachProperties{
			Name:          "Name",
			Date:          "Date",
			Summary:       "Summary",
			RecoveryScore: "Recovery Score",
			ActionItem:    "Action Item",
		},
	}
}

// LoadProperties decodes path over the defaults. An empty path yields the defaults unchanged.
// Keys absent from the file keep their default value.
func LoadProperties(path string) (Properties, error) {
	props := DefaultProperties()
	if path == "" {
		return props, nil
	}

	meta, err := toml.DecodeFile(path, &props)
	if err != nil {
		return Properties{}, fmt.Errorf("decode properties file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Properties{}, fmt.Errorf("properties file %s: unknown keys %v", path, undecoded)
	}
	return props, nil
}

// DistanceColumns lists the distance column followed by its fallbacks.
func (p ActivityProperties) DistanceColumns() []string {
	return append([]string{p.Distance}, p.DistanceFallbacks...)
}

// AvgHRColumns lists the heart rate column followed by its fallbacks.
func (p ActivityProperties) AvgHRColumns() []string {
	return append([]string{p.AvgHR}, p.AvgHRFallbacks...)
}
