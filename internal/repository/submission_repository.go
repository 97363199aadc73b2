package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/pestops-contracts/internal/model"
)

type SubmissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	var payload any
	if len(s.Payload) > 0 {
		payload = string(s.Payload)
	}

	var row struct {
		ID        uuid.UUID
		CreatedAt time.Time
	}
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO contract_submission (
			session_id,
			operation,
			contract_id,
			contract_number,
			customer_id,
			line_count,
			ticket_count,
			outcome,
			message,
			payload,
			created_by_user_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?::jsonb, ?)
		RETURNING id, created_at
	`,
		s.SessionID,
		s.Operation,
		s.ContractID,
		s.ContractNumber,
		s.CustomerID,
		s.LineCount,
		s.TicketCount,
		string(s.Outcome),
		s.Message,
		payload,
		s.CreatedBy,
	).Scan(&row).Error
	if err != nil {
		return err
	}
	s.ID = row.ID
	s.CreatedAt = row.CreatedAt
	return nil
}

// ListByContract returns the newest attempts first.
func (r *SubmissionRepository) ListByContract(ctx context.Context, contractID string, limit int) ([]model.Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var rows []struct {
		ID              uuid.UUID
		SessionID       string
		Operation       string
		ContractID      *string
		ContractNumber  *string
		CustomerID      *string
		LineCount       int
		TicketCount     int
		Outcome         string
		Message         *string
		CreatedByUserID uuid.UUID
		CreatedAt       time.Time
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			session_id,
			operation,
			contract_id,
			contract_number,
			customer_id,
			line_count,
			ticket_count,
			outcome,
			message,
			created_by_user_id,
			created_at
		FROM contract_submission
		WHERE contract_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, contractID, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]model.Submission, 0, len(rows))
	for _, row := range rows {
		result = append(result, model.Submission{
			ID:             row.ID,
			SessionID:      row.SessionID,
			Operation:      row.Operation,
			ContractID:     row.ContractID,
			ContractNumber: row.ContractNumber,
			CustomerID:     row.CustomerID,
			LineCount:      row.LineCount,
			TicketCount:    row.TicketCount,
			Outcome:        model.SubmissionOutcome(row.Outcome),
			Message:        row.Message,
			CreatedBy:      row.CreatedByUserID,
			CreatedAt:      row.CreatedAt,
		})
	}
	return result, nil
}
