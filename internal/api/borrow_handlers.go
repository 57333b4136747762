package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/practicalwork/library-server/internal/domain"
)

func (s *Server) registerBorrowRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createBorrow",
		Method:        http.MethodPost,
		Path:          "/api/v1/borrows",
		Summary:       "Borrow book",
		Description:   "Lends an available book to an active reader",
		Tags:          []string{"Borrows"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBorrow)

	huma.Register(s.api, huma.Operation{
		OperationID: "markOverdueBorrows",
		Method:      http.MethodPost,
		Path:        "/api/v1/borrows/overdue",
		Summary:     "Mark overdue borrows",
		Description: "Flags every issued borrow past its due date as overdue",
		Tags:        []string{"Borrows"},
	}, s.handleMarkOverdue)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBorrow",
		Method:      http.MethodGet,
		Path:        "/api/v1/borrows/{ref}",
		Summary:     "Get borrow",
		Description: "Returns a borrow by ID, or the latest borrow of the reader with this full name",
		Tags:        []string{"Borrows"},
	}, s.handleGetBorrow)

	huma.Register(s.api, huma.Operation{
		OperationID: "returnBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{id}/return",
		Summary:     "Return book",
		Description: "Closes the outstanding borrow of a book",
		Tags:        []string{"Borrows"},
	}, s.handleReturnBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getReaderLatestBorrow",
		Method:      http.MethodGet,
		Path:        "/api/v1/readers/{id}/borrows/latest",
		Summary:     "Get latest borrow of reader",
		Description: "Returns the most recent borrow of a reader",
		Tags:        []string{"Borrows"},
	}, s.handleGetReaderLatestBorrow)
}

// === DTOs ===

// BorrowResponse contains borrow data in API responses.
type BorrowResponse struct {
	ID         string     `json:"id" doc:"Borrow ID"`
	BookID     string     `json:"book_id" doc:"Borrowed book"`
	ReaderID   string     `json:"reader_id" doc:"Borrowing reader"`
	BorrowDate time.Time  `json:"borrow_date" doc:"When the book was lent"`
	DueDate    time.Time  `json:"due_date" doc:"When the book is due back"`
	ReturnDate *time.Time `json:"return_date,omitempty" doc:"When the book came back"`
	Status     string     `json:"status" doc:"Issued, Overdue or Returned"`
}

func toBorrowResponse(b *domain.Borrow) BorrowResponse {
	return BorrowResponse{
		ID:         b.ID,
		BookID:     b.BookID,
		ReaderID:   b.ReaderID,
		BorrowDate: b.BorrowDate,
		DueDate:    b.DueDate,
		ReturnDate: b.ReturnDate,
		Status:     string(b.Status),
	}
}

// BorrowOutput wraps a borrow response for Huma.
type BorrowOutput struct {
	Body BorrowResponse
}

// CreateBorrowRequest is the request body for borrowing a book.
type CreateBorrowRequest struct {
	BookID   string `json:"book_id" minLength:"1" doc:"Book to lend"`
	ReaderID string `json:"reader_id" minLength:"1" doc:"Reader borrowing it"`
}

// CreateBorrowInput wraps the create borrow request for Huma.
type CreateBorrowInput struct {
	Body CreateBorrowRequest
}

// GetBorrowInput contains parameters for getting a borrow.
type GetBorrowInput struct {
	Ref string `path:"ref" doc:"Borrow ID or reader full name"`
}

// MarkOverdueResponse reports an overdue sweep.
type MarkOverdueResponse struct {
	Marked int `json:"marked" doc:"Borrows flagged as overdue"`
}

// MarkOverdueOutput wraps the overdue sweep response for Huma.
type MarkOverdueOutput struct {
	Body MarkOverdueResponse
}

// MessageResponse contains a simple success message.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleCreateBorrow(ctx context.Context, input *CreateBorrowInput) (*CreatedOutput, error) {
	borrowID, err := s.services.Borrow.CreateBorrow(ctx, input.Body.BookID, input.Body.ReaderID)
	if err != nil {
		return nil, err
	}
	return &CreatedOutput{Body: CreatedResponse{ID: borrowID}}, nil
}

func (s *Server) handleReturnBook(ctx context.Context, input *BookIDInput) (*MessageOutput, error) {
	if err := s.services.Borrow.ReturnBook(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Book returned"}}, nil
}

func (s *Server) handleGetBorrow(ctx context.Context, input *GetBorrowInput) (*BorrowOutput, error) {
	borrow, err := s.services.Borrow.GetDetails(ctx, input.Ref)
	if err != nil {
		return nil, err
	}
	return &BorrowOutput{Body: toBorrowResponse(borrow)}, nil
}

func (s *Server) handleGetReaderLatestBorrow(ctx context.Context, input *ReaderIDInput) (*BorrowOutput, error) {
	borrow, err := s.services.Borrow.GetByReader(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BorrowOutput{Body: toBorrowResponse(borrow)}, nil
}

func (s *Server) handleMarkOverdue(ctx context.Context, _ *struct{}) (*MarkOverdueOutput, error) {
	n, err := s.services.Borrow.MarkOverdue(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	return &MarkOverdueOutput{Body: MarkOverdueResponse{Marked: n}}, nil
}
