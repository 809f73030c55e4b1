package entities

import (
	"fmt"
	"strings"
)

// Sentiment classifies a persona reply and drives the patience delta.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ParseSentiment canonicalizes a raw sentiment value. Matching is
// case-insensitive; anything outside the closed set is rejected.
func ParseSentiment(raw string) (Sentiment, error) {
	switch Sentiment(strings.ToLower(strings.TrimSpace(raw))) {
	case SentimentPositive:
		return SentimentPositive, nil
	case SentimentNegative:
		return SentimentNegative, nil
	case SentimentNeutral:
		return SentimentNeutral, nil
	}
	return "", fmt.Errorf("sentiment must be one of positive, negative, neutral; got %q", raw)
}

// StructuredReply is a validated persona reply. Replies are constructed only
// through NewStructuredReply, so an invalid combination never exists.
type StructuredReply struct {
	text       string
	sentiment  Sentiment
	dealClosed bool
}

// NewStructuredReply validates and builds a StructuredReply. Text must be
// non-empty and sentiment must be in the closed set.
func NewStructuredReply(text string, sentiment string, dealClosed bool) (StructuredReply, error) {
	if strings.TrimSpace(text) == "" {
		return StructuredReply{}, fmt.Errorf("reply text cannot be empty")
	}

	canonical, err := ParseSentiment(sentiment)
	if err != nil {
		return StructuredReply{}, err
	}

	return StructuredReply{
		text:       text,
		sentiment:  canonical,
		dealClosed: dealClosed,
	}, nil
}

// Text returns the spoken reply text.
func (r StructuredReply) Text() string {
	return r.text
}

// Sentiment returns the canonicalized sentiment classification.
func (r StructuredReply) Sentiment() Sentiment {
	return r.sentiment
}

// DealClosed reports whether the persona agreed to close the deal.
func (r StructuredReply) DealClosed() bool {
	return r.dealClosed
}
