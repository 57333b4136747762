package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/practicalwork/library-server/internal/color"
	"github.com/practicalwork/library-server/internal/domain"
	domainerrors "github.com/practicalwork/library-server/internal/errors"
)

func (s *Server) registerReaderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createReader",
		Method:        http.MethodPost,
		Path:          "/api/v1/readers",
		Summary:       "Create reader",
		Description:   "Opens a library card valid for the configured period",
		Tags:          []string{"Readers"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateReader)

	huma.Register(s.api, huma.Operation{
		OperationID: "lookupReader",
		Method:      http.MethodGet,
		Path:        "/api/v1/readers/lookup",
		Summary:     "Look up reader",
		Description: "Finds a reader id by phone number or by full name",
		Tags:        []string{"Readers"},
	}, s.handleLookupReader)

	huma.Register(s.api, huma.Operation{
		OperationID: "getReader",
		Method:      http.MethodGet,
		Path:        "/api/v1/readers/{id}",
		Summary:     "Get reader",
		Description: "Returns a reader by ID",
		Tags:        []string{"Readers"},
	}, s.handleGetReader)

	huma.Register(s.api, huma.Operation{
		OperationID: "extendReader",
		Method:      http.MethodPost,
		Path:        "/api/v1/readers/{id}/extend",
		Summary:     "Extend reader card",
		Description: "Moves the card expiry to a later date",
		Tags:        []string{"Readers"},
	}, s.handleExtendReader)

	huma.Register(s.api, huma.Operation{
		OperationID: "closeReader",
		Method:      http.MethodPost,
		Path:        "/api/v1/readers/{id}/close",
		Summary:     "Close reader card",
		Description: "Deactivates a card that has no unreturned books",
		Tags:        []string{"Readers"},
	}, s.handleCloseReader)

	huma.Register(s.api, huma.Operation{
		OperationID: "getReaderBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/readers/{id}/books",
		Summary:     "Get reader books",
		Description: "Returns the books the reader has not returned yet",
		Tags:        []string{"Readers"},
	}, s.handleGetReaderBooks)
}

// === DTOs ===

// ReaderResponse contains reader data in API responses.
type ReaderResponse struct {
	ID          string    `json:"id" doc:"Reader ID"`
	FullName    string    `json:"full_name" doc:"Full name"`
	PhoneNumber string    `json:"phone_number" doc:"Normalized phone number"`
	ExpiryDate  time.Time `json:"expiry_date" doc:"Card expiry"`
	IsActive    bool      `json:"is_active" doc:"Whether the card is open"`
	AvatarColor string    `json:"avatar_color" doc:"Stable display color derived from the ID"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time `json:"updated_at" doc:"Last update time"`
}

func toReaderResponse(r *domain.Reader) ReaderResponse {
	return ReaderResponse{
		ID:          r.ID,
		FullName:    r.FullName,
		PhoneNumber: r.PhoneNumber,
		ExpiryDate:  r.ExpiryDate,
		IsActive:    r.IsActive,
		AvatarColor: color.ForReader(r.ID),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ReaderOutput wraps a reader response for Huma.
type ReaderOutput struct {
	Body ReaderResponse
}

// CreateReaderRequest is the request body for creating a reader.
type CreateReaderRequest struct {
	FullName    string `json:"full_name" doc:"Full name"`
	PhoneNumber string `json:"phone_number" doc:"Phone number; must be unique"`
}

// CreateReaderInput wraps the create reader request for Huma.
type CreateReaderInput struct {
	Body CreateReaderRequest
}

// ReaderIDInput addresses a single reader.
type ReaderIDInput struct {
	ID string `path:"id" doc:"Reader ID"`
}

// ExtendReaderRequest is the request body for extending a card.
type ExtendReaderRequest struct {
	ExpiryDate time.Time `json:"expiry_date" doc:"New expiry, strictly after the current one"`
}

// ExtendReaderInput wraps the extend reader request for Huma.
type ExtendReaderInput struct {
	ID   string `path:"id" doc:"Reader ID"`
	Body ExtendReaderRequest
}

// LookupReaderInput contains parameters for finding a reader.
type LookupReaderInput struct {
	Phone string `query:"phone" doc:"Phone number, any formatting"`
	Name  string `query:"name" doc:"Exact full name"`
}

// LookupReaderResponse carries the id of the reader found.
type LookupReaderResponse struct {
	ID string `json:"id" doc:"Reader ID"`
}

// LookupReaderOutput wraps the lookup response for Huma.
type LookupReaderOutput struct {
	Body LookupReaderResponse
}

// === Handlers ===

func (s *Server) handleCreateReader(ctx context.Context, input *CreateReaderInput) (*CreatedOutput, error) {
	readerID, err := s.services.Reader.CreateReader(ctx, domain.ReaderDraft{
		FullName:    input.Body.FullName,
		PhoneNumber: input.Body.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}
	return &CreatedOutput{Body: CreatedResponse{ID: readerID}}, nil
}

func (s *Server) handleGetReader(ctx context.Context, input *ReaderIDInput) (*ReaderOutput, error) {
	reader, err := s.services.Reader.GetReader(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ReaderOutput{Body: toReaderResponse(reader)}, nil
}

func (s *Server) handleExtendReader(ctx context.Context, input *ExtendReaderInput) (*ReaderOutput, error) {
	if err := s.services.Reader.ExtendReader(ctx, input.ID, input.Body.ExpiryDate); err != nil {
		return nil, err
	}
	return s.handleGetReader(ctx, &ReaderIDInput{ID: input.ID})
}

func (s *Server) handleCloseReader(ctx context.Context, input *ReaderIDInput) (*ReaderOutput, error) {
	if err := s.services.Reader.CloseReader(ctx, input.ID); err != nil {
		return nil, err
	}
	return s.handleGetReader(ctx, &ReaderIDInput{ID: input.ID})
}

func (s *Server) handleGetReaderBooks(ctx context.Context, input *ReaderIDInput) (*BooksOutput, error) {
	books, err := s.services.Reader.GetBooksForReader(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BooksOutput{Body: BooksResponse{Books: toBookResponses(books)}}, nil
}

func (s *Server) handleLookupReader(ctx context.Context, input *LookupReaderInput) (*LookupReaderOutput, error) {
	var (
		readerID string
		err      error
	)
	switch {
	case input.Phone != "":
		readerID, err = s.services.Reader.FindReaderIDByPhone(ctx, input.Phone)
	case input.Name != "":
		readerID, err = s.services.Reader.FindReaderIDByName(ctx, input.Name)
	default:
		return nil, domainerrors.InvalidInput("phone or name is required")
	}
	if err != nil {
		return nil, err
	}
	return &LookupReaderOutput{Body: LookupReaderResponse{ID: readerID}}, nil
}
