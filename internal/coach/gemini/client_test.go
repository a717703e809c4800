package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
)

func TestResponseTextConcatenatesTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{
			genai.Text(`{"summary":"a",`),
			genai.Blob{MIMEType: "image/png"},
			genai.Text(`"score":"Good","action":"b"}`),
		}},
	}}}

	text, err := responseText(resp)
	require.NoError(t, err)
	require.Equal(t, `{"summary":"a","score":"Good","action":"b"}`, text)
}

func TestResponseTextRejectsEmptyResponses(t *testing.T) {
	for _, resp := range []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{}}},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{}}}},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text("  ")}}}}},
	} {
		_, err := responseText(resp)
		require.ErrorIs(t, err, ErrEmptyResponse)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "gemini-1.5-flash")
	require.Error(t, err)
}
