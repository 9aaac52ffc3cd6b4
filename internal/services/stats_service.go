// Package services – StatsService
//
// Response-rate statistics computed from the inquiry flags on the message
// log. Stats are derived on demand; nothing here is cached or denormalized,
// so the numbers are always consistent with the stored messages.
package services

import (
	"context"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/templatehub/chat-backend/internal/domain"
	"github.com/templatehub/chat-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ResponseStats is the aggregate a seller profile displays: how many
// inquiries they received, how many they answered within the response
// window, the percentage, and the average time-to-answer in hours.
type ResponseStats struct {
	TotalInquiries      int     `json:"total_inquiries"`
	RespondedInquiries  int     `json:"responded_inquiries"`
	ResponseRate        int     `json:"response_rate"`
	AverageResponseTime float64 `json:"average_response_time"`
}

// InquirySummary is one row of the detailed stats view.
type InquirySummary struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	HasResponse    bool      `json:"has_response"`
	ResponseTime   *float64  `json:"response_time,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// DetailedStats bundles the aggregate with the newest inquiries so a
// dashboard can show both the headline number and recent activity.
type DetailedStats struct {
	ResponseStats
	RecentInquiries []InquirySummary `json:"recent_inquiries"`
}

// StatsService computes response-rate statistics for users.
type StatsService struct {
	DB *gorm.DB
}

// NewStatsService constructs a StatsService.
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

// ResponseStats computes the user's aggregate over every inquiry they
// received. A user with no inquiries gets all-zero stats, not an error.
func (s *StatsService) ResponseStats(ctx context.Context, userID string) (ResponseStats, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "ResponseStats",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	inquiries, err := repo.ListInquiriesReceived(ctx, s.DB, userID)
	if err != nil {
		return ResponseStats{}, err
	}
	return aggregate(inquiries), nil
}

// Detailed returns the aggregate plus the user's newest inquiries, capped
// at limit (default 5).
func (s *StatsService) Detailed(ctx context.Context, userID string, limit int) (DetailedStats, error) {
	if limit <= 0 {
		limit = 5
	}

	stats, err := s.ResponseStats(ctx, userID)
	if err != nil {
		return DetailedStats{}, err
	}

	recent, err := repo.ListRecentInquiries(ctx, s.DB, userID, limit)
	if err != nil {
		return DetailedStats{}, err
	}

	out := DetailedStats{ResponseStats: stats, RecentInquiries: make([]InquirySummary, 0, len(recent))}
	for _, m := range recent {
		out.RecentInquiries = append(out.RecentInquiries, InquirySummary{
			MessageID:      m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			HasResponse:    m.HasResponse,
			ResponseTime:   m.ResponseTime,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out, nil
}

// aggregate folds inquiry rows into the headline numbers. The rate is an
// integer percentage; the average is over responded inquiries only, rounded
// to one decimal like the per-inquiry times.
func aggregate(inquiries []domain.Message) ResponseStats {
	st := ResponseStats{TotalInquiries: len(inquiries)}
	var sum float64
	for _, m := range inquiries {
		if m.HasResponse && m.ResponseTime != nil {
			st.RespondedInquiries++
			sum += *m.ResponseTime
		}
	}
	if st.TotalInquiries > 0 {
		st.ResponseRate = int(math.Round(float64(st.RespondedInquiries) / float64(st.TotalInquiries) * 100))
	}
	if st.RespondedInquiries > 0 {
		st.AverageResponseTime = math.Round(sum/float64(st.RespondedInquiries)*10) / 10
	}
	return st
}
