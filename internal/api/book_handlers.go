package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/practicalwork/library-server/internal/domain"
	"github.com/practicalwork/library-server/internal/search"
	"github.com/practicalwork/library-server/internal/service"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns one page of the catalogue, oldest first",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Create book",
		Description:   "Adds an available book to the catalogue",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/search",
		Summary:     "Search books",
		Description: "Full-text search over titles, authors and descriptions",
		Tags:        []string{"Books"},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAvailableBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/available",
		Summary:     "List available books",
		Description: "Returns the books that can be borrowed right now",
		Tags:        []string{"Books"},
	}, s.handleListAvailableBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexBooks",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/reindex",
		Summary:     "Rebuild search index",
		Description: "Writes every book to the search index",
		Tags:        []string{"Books"},
	}, s.handleReindexBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book by ID",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Description: "Replaces the editable fields of a book. The category cannot change.",
		Tags:        []string{"Books"},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "archiveBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{id}/archive",
		Summary:     "Archive book",
		Description: "Takes a book out of circulation",
		Tags:        []string{"Books"},
	}, s.handleArchiveBook)

	huma.Register(s.api, huma.Operation{
		OperationID:  "updateBookDetails",
		Method:       http.MethodPut,
		Path:         "/api/v1/books/{id}/details",
		Summary:      "Update book details",
		Description:  "Replaces the description and optionally uploads a new cover",
		Tags:         []string{"Books"},
		MaxBodyBytes: MaxUploadSize * 2,
	}, s.handleUpdateBookDetails)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookCover",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/cover",
		Summary:     "Get book cover",
		Description: "Redirects to the public URL of the cover image",
		Tags:        []string{"Books"},
	}, s.handleGetBookCover)
}

// === DTOs ===

// BookResponse contains book data in API responses.
type BookResponse struct {
	ID             string    `json:"id" doc:"Book ID"`
	Title          string    `json:"title" doc:"Title"`
	Authors        []string  `json:"authors" doc:"Authors"`
	Description    string    `json:"description,omitempty" doc:"Description (Markdown)"`
	Year           int       `json:"year" doc:"Publication year"`
	Category       string    `json:"category" doc:"Category"`
	Status         string    `json:"status" doc:"Available, Borrowed or Archived"`
	CoverImagePath *string   `json:"cover_image_path,omitempty" doc:"Stored cover reference"`
	CoverBlurHash  string    `json:"cover_blur_hash,omitempty" doc:"BlurHash placeholder for the cover"`
	IsArchived     bool      `json:"is_archived" doc:"Whether the book is archived"`
	CreatedAt      time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt      time.Time `json:"updated_at" doc:"Last update time"`
}

func toBookResponse(b *domain.Book) BookResponse {
	return BookResponse{
		ID:             b.ID,
		Title:          b.Title,
		Authors:        b.Authors,
		Description:    b.Description,
		Year:           b.Year,
		Category:       string(b.Category),
		Status:         string(b.Status),
		CoverImagePath: b.CoverImagePath,
		CoverBlurHash:  b.CoverBlurHash,
		IsArchived:     b.IsArchived,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func toBookResponses(books []*domain.Book) []BookResponse {
	resp := make([]BookResponse, len(books))
	for i, b := range books {
		resp[i] = toBookResponse(b)
	}
	return resp
}

// BookOutput wraps a book response for Huma.
type BookOutput struct {
	Body BookResponse
}

// BookFilterParams are the query parameters shared by book listings.
type BookFilterParams struct {
	Category        string   `query:"category" enum:"Default,Scientific,Educational,Fiction" doc:"Only books of this category"`
	Status          string   `query:"status" enum:"Available,Borrowed,Archived" doc:"Only books in this status"`
	Authors         []string `query:"author" doc:"Only books listing every one of these authors"`
	Year            int      `query:"year" doc:"Only books published this year"`
	ExcludeArchived bool     `query:"exclude_archived" doc:"Leave archived books out"`
}

func (p BookFilterParams) toFilter() (domain.BookFilter, error) {
	filter := domain.BookFilter{
		Authors:         p.Authors,
		Year:            p.Year,
		ExcludeArchived: p.ExcludeArchived,
	}
	if p.Category != "" {
		category, err := domain.ParseBookCategory(p.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &category
	}
	if p.Status != "" {
		status, err := domain.ParseBookStatus(p.Status)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	return filter, nil
}

// ListBooksInput contains parameters for listing books.
type ListBooksInput struct {
	BookFilterParams
	Page     int `query:"page" default:"1" maximum:"1000000" doc:"Page number, starting at 1"`
	PageSize int `query:"page_size" default:"10" doc:"Books per page (max 100)"`
}

// ListBooksResponse contains one page of books.
type ListBooksResponse struct {
	Books    []BookResponse `json:"books" doc:"Books on this page"`
	Page     int            `json:"page" doc:"Page number"`
	PageSize int            `json:"page_size" doc:"Requested page size"`
}

// ListBooksOutput wraps the list books response for Huma.
type ListBooksOutput struct {
	Body ListBooksResponse
}

// CreateBookRequest is the request body for creating a book.
type CreateBookRequest struct {
	Title       string   `json:"title" doc:"Title"`
	Authors     []string `json:"authors" doc:"Authors, at least one"`
	Description string   `json:"description,omitempty" doc:"Description; HTML is converted to Markdown"`
	Year        int      `json:"year,omitempty" doc:"Publication year"`
	Category    string   `json:"category,omitempty" doc:"Category, Default when omitted"`
}

// CreateBookInput wraps the create book request for Huma.
type CreateBookInput struct {
	Body CreateBookRequest
}

// CreatedResponse carries the id of a created entity.
type CreatedResponse struct {
	ID string `json:"id" doc:"ID of the created entity"`
}

// CreatedOutput wraps the created response for Huma.
type CreatedOutput struct {
	Body CreatedResponse
}

// BookIDInput addresses a single book.
type BookIDInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// UpdateBookRequest is the request body for updating a book.
type UpdateBookRequest struct {
	Title          string   `json:"title" doc:"Title"`
	Authors        []string `json:"authors" doc:"Authors, at least one"`
	Description    string   `json:"description,omitempty" doc:"Description"`
	Year           int      `json:"year,omitempty" doc:"Publication year"`
	Category       string   `json:"category" doc:"Must equal the stored category"`
	Status         *string  `json:"status,omitempty" doc:"Only Archived is accepted as a change"`
	CoverImagePath *string  `json:"cover_image_path,omitempty" doc:"Stored cover reference"`
}

// UpdateBookInput wraps the update book request for Huma.
type UpdateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body UpdateBookRequest
}

// CoverUpload is an inline cover image.
type CoverUpload struct {
	Data        []byte `json:"data" doc:"Image bytes, base64 encoded"`
	FileName    string `json:"file_name" minLength:"1" doc:"Original file name"`
	ContentType string `json:"content_type" doc:"MIME type, must be image/*"`
}

// UpdateBookDetailsRequest is the request body for updating book details.
type UpdateBookDetailsRequest struct {
	Description string       `json:"description" doc:"New description; HTML is converted to Markdown"`
	Cover       *CoverUpload `json:"cover,omitempty" doc:"New cover image"`
}

// UpdateBookDetailsInput wraps the update details request for Huma.
type UpdateBookDetailsInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body UpdateBookDetailsRequest
}

// SearchBooksInput contains parameters for searching books.
type SearchBooksInput struct {
	Query     string `query:"q" doc:"Search query; empty matches everything"`
	Category  string `query:"category" enum:"Default,Scientific,Educational,Fiction" doc:"Only books of this category"`
	Available bool   `query:"available" doc:"Leave archived books out"`
	Limit     int    `query:"limit" default:"10" doc:"Max results (max 100)"`
	Offset    int    `query:"offset" minimum:"0" doc:"Results to skip"`
}

// SearchBooksOutput wraps search results for Huma.
type SearchBooksOutput struct {
	Body *search.SearchResult
}

// ListAvailableBooksInput contains parameters for listing available books.
type ListAvailableBooksInput struct {
	BookFilterParams
}

// BooksResponse contains an unpaged list of books.
type BooksResponse struct {
	Books []BookResponse `json:"books" doc:"Books"`
}

// BooksOutput wraps an unpaged list of books for Huma.
type BooksOutput struct {
	Body BooksResponse
}

// ReindexResponse reports a search index rebuild.
type ReindexResponse struct {
	Indexed int `json:"indexed" doc:"Books written to the index"`
}

// ReindexOutput wraps the reindex response for Huma.
type ReindexOutput struct {
	Body ReindexResponse
}

// RedirectOutput is a bodiless redirect.
type RedirectOutput struct {
	Status       int
	Location     string `header:"Location"`
	CacheControl string `header:"Cache-Control"`
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	filter, err := input.toFilter()
	if err != nil {
		return nil, err
	}

	books, err := s.services.Book.GetBooks(ctx, filter, input.Page, input.PageSize)
	if err != nil {
		return nil, err
	}

	return &ListBooksOutput{
		Body: ListBooksResponse{
			Books:    toBookResponses(books),
			Page:     max(input.Page, 1),
			PageSize: input.PageSize,
		},
	}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*CreatedOutput, error) {
	bookID, err := s.services.Book.CreateBook(ctx, domain.BookDraft{
		Title:       input.Body.Title,
		Authors:     input.Body.Authors,
		Description: input.Body.Description,
		Year:        input.Body.Year,
		Category:    domain.BookCategory(input.Body.Category),
	})
	if err != nil {
		return nil, err
	}
	return &CreatedOutput{Body: CreatedResponse{ID: bookID}}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	book, err := s.services.Book.GetBookDetails(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: toBookResponse(book)}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	update := domain.BookUpdate{
		Title:          input.Body.Title,
		Authors:        input.Body.Authors,
		Description:    input.Body.Description,
		Year:           input.Body.Year,
		Category:       domain.BookCategory(input.Body.Category),
		CoverImagePath: input.Body.CoverImagePath,
	}
	if input.Body.Status != nil {
		status, err := domain.ParseBookStatus(*input.Body.Status)
		if err != nil {
			return nil, err
		}
		update.Status = &status
	}

	if err := s.services.Book.UpdateBook(ctx, input.ID, update); err != nil {
		return nil, err
	}
	return s.handleGetBook(ctx, &BookIDInput{ID: input.ID})
}

func (s *Server) handleArchiveBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	book, err := s.services.Book.ArchiveBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: toBookResponse(book)}, nil
}

func (s *Server) handleUpdateBookDetails(ctx context.Context, input *UpdateBookDetailsInput) (*BookOutput, error) {
	var cover *service.Cover
	if c := input.Body.Cover; c != nil {
		cover = &service.Cover{
			Data:        c.Data,
			FileName:    c.FileName,
			ContentType: c.ContentType,
		}
	}

	if err := s.services.Book.UpdateBookDetails(ctx, input.ID, input.Body.Description, cover); err != nil {
		return nil, err
	}
	return s.handleGetBook(ctx, &BookIDInput{ID: input.ID})
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	params := search.SearchParams{
		Query:           input.Query,
		ExcludeArchived: input.Available,
		Limit:           input.Limit,
		Offset:          input.Offset,
	}
	if input.Category != "" {
		category, err := domain.ParseBookCategory(input.Category)
		if err != nil {
			return nil, err
		}
		params.Category = &category
	}

	result, err := s.services.Book.SearchBooks(ctx, params)
	if err != nil {
		return nil, err
	}
	return &SearchBooksOutput{Body: result}, nil
}

func (s *Server) handleListAvailableBooks(ctx context.Context, input *ListAvailableBooksInput) (*BooksOutput, error) {
	filter, err := input.toFilter()
	if err != nil {
		return nil, err
	}

	books, err := s.services.Borrow.GetAvailableBooks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &BooksOutput{Body: BooksResponse{Books: toBookResponses(books)}}, nil
}

func (s *Server) handleReindexBooks(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	n, err := s.services.Book.Reindex(ctx)
	if err != nil {
		return nil, err
	}
	return &ReindexOutput{Body: ReindexResponse{Indexed: n}}, nil
}

func (s *Server) handleGetBookCover(ctx context.Context, input *BookIDInput) (*RedirectOutput, error) {
	url, err := s.services.Book.CoverURL(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &RedirectOutput{
		Status:       http.StatusTemporaryRedirect,
		Location:     url,
		CacheControl: CacheNoStore,
	}, nil
}
