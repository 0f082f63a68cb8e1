package processing

import (
	"context"
	"log/slog"

	"github.com/tombee/squash/pkg/llm"
)

const (
	interviewTemperature = 0.3
	previewLength        = 500
	maxKeyQuotes         = 20
)

const interviewPrompt = `You are an expert product manager analyzing customer interviews.
Extract the following from the interview:
1. Pain points (specific problems customers face)
2. Feature requests (what they want to see)
3. Positive feedback (what they like)
4. Overall sentiment (positive, neutral, negative)
5. Key quotes (exact quotes that are insightful)

Format your response as JSON with these exact keys:
{
  "pain_points": ["point 1", "point 2"],
  "feature_requests": ["request 1", "request 2"],
  "positive_feedback": ["feedback 1", "feedback 2"],
  "sentiment": "positive/neutral/negative",
  "key_quotes": ["quote 1", "quote 2"],
  "summary": "Brief 2-3 sentence summary"
}`

// InterviewInsights is what the model extracts from one transcript.
type InterviewInsights struct {
	PainPoints       []string `json:"pain_points"`
	FeatureRequests  []string `json:"feature_requests"`
	PositiveFeedback []string `json:"positive_feedback"`
	Sentiment        string   `json:"sentiment"`
	KeyQuotes        []string `json:"key_quotes"`
	Summary          string   `json:"summary"`
	Error            string   `json:"error,omitempty"`
}

// Interview is one processed transcript.
type Interview struct {
	FileName string             `json:"file_name"`
	FileType string             `json:"file_type,omitempty"`
	Insights *InterviewInsights `json:"insights,omitempty"`
	RawText  string             `json:"raw_text,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// SentimentDistribution counts interviews per sentiment.
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// InterviewSummary merges every processed interview.
type InterviewSummary struct {
	TotalInterviews       int                   `json:"total_interviews"`
	PainPoints            []string              `json:"pain_points"`
	FeatureRequests       []string              `json:"feature_requests"`
	PositiveFeedback      []string              `json:"positive_feedback"`
	KeyQuotes             []string              `json:"key_quotes"`
	OverallSentiment      string                `json:"overall_sentiment"`
	SentimentDistribution SentimentDistribution `json:"sentiment_distribution"`
}

// InterviewProcessor extracts insights from parsed transcripts.
type InterviewProcessor struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewInterviewProcessor creates a processor backed by provider.
func NewInterviewProcessor(provider llm.Provider, logger *slog.Logger) *InterviewProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &InterviewProcessor{provider: provider, logger: logger}
}

// Process turns a parsed document into an interview. Parse errors and
// empty documents carry an error; extraction failures become insights
// with an error and the "unknown" sentiment.
func (p *InterviewProcessor) Process(ctx context.Context, doc Document) Interview {
	if doc.Error != "" {
		return Interview{FileName: doc.FileName, Error: doc.Error}
	}
	if doc.Text == "" {
		return Interview{FileName: doc.FileName, Error: "No text content found"}
	}

	p.logger.Info("processing interview", "file", doc.FileName)
	insights := p.extract(ctx, doc.Text)

	preview := doc.Text
	if runes := []rune(preview); len(runes) > previewLength {
		preview = string(runes[:previewLength]) + "..."
	}
	return Interview{
		FileName: doc.FileName,
		FileType: doc.FileType,
		Insights: insights,
		RawText:  preview,
	}
}

func (p *InterviewProcessor) extract(ctx context.Context, transcript string) *InterviewInsights {
	req := llm.Prompt(llm.TaskInterview, interviewPrompt, "Interview text:\n\n"+transcript, interviewTemperature)

	var insights InterviewInsights
	if err := llm.CompleteJSON(ctx, p.provider, req, &insights); err != nil {
		p.logger.Error("failed to extract interview insights", "error", err)
		return &InterviewInsights{
			PainPoints:       []string{},
			FeatureRequests:  []string{},
			PositiveFeedback: []string{},
			Sentiment:        "unknown",
			KeyQuotes:        []string{},
			Summary:          "Error processing interview",
			Error:            err.Error(),
		}
	}
	return &insights
}

// AggregateInterviews concatenates insights across interviews. The overall
// sentiment is the most frequent of positive, neutral and negative; ties go
// to the first in that order.
func AggregateInterviews(interviews []Interview) *InterviewSummary {
	s := &InterviewSummary{
		TotalInterviews:  len(interviews),
		PainPoints:       []string{},
		FeatureRequests:  []string{},
		PositiveFeedback: []string{},
		KeyQuotes:        []string{},
	}
	for _, iv := range interviews {
		in := iv.Insights
		if in == nil {
			continue
		}
		s.PainPoints = append(s.PainPoints, in.PainPoints...)
		s.FeatureRequests = append(s.FeatureRequests, in.FeatureRequests...)
		s.PositiveFeedback = append(s.PositiveFeedback, in.PositiveFeedback...)
		s.KeyQuotes = append(s.KeyQuotes, in.KeyQuotes...)
		switch in.Sentiment {
		case "positive":
			s.SentimentDistribution.Positive++
		case "neutral":
			s.SentimentDistribution.Neutral++
		case "negative":
			s.SentimentDistribution.Negative++
		}
	}
	if len(s.KeyQuotes) > maxKeyQuotes {
		s.KeyQuotes = s.KeyQuotes[:maxKeyQuotes]
	}

	d := s.SentimentDistribution
	switch {
	case d.Positive >= d.Neutral && d.Positive >= d.Negative:
		s.OverallSentiment = "positive"
	case d.Neutral >= d.Negative:
		s.OverallSentiment = "neutral"
	default:
		s.OverallSentiment = "negative"
	}
	return s
}
