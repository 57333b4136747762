package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicalwork/library-server/internal/cache"
	"github.com/practicalwork/library-server/internal/domain"
	domainerrors "github.com/practicalwork/library-server/internal/errors"
	"github.com/practicalwork/library-server/internal/events"
	"github.com/practicalwork/library-server/internal/id"
	"github.com/practicalwork/library-server/internal/search"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for y := range 60 {
		for x := range 40 {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 4), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func bookIDs(books []*domain.Book) []string {
	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	return ids
}

func TestCreateBook(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	bookID, err := env.books.CreateBook(ctx, domain.BookDraft{
		Title:       "  Dune  ",
		Authors:     []string{"Frank Herbert", " frank herbert "},
		Description: "<p>Spice and <strong>sand</strong>.</p>",
		Year:        1965,
		Category:    domain.CategoryFiction,
	})
	require.NoError(t, err)
	assert.True(t, id.Is(id.PrefixBook, bookID))

	book := env.book(t, bookID)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, []string{"Frank Herbert"}, book.Authors)
	assert.Equal(t, "Spice and **sand**.", book.Description)
	assert.Equal(t, domain.BookAvailable, book.Status)
	assert.False(t, book.IsArchived)
	assert.Equal(t, env.clock.Now(), book.CreatedAt)

	assert.Equal(t, []events.EventType{events.EventBookCreated}, env.publisher.Types())
	data, ok := env.publisher.Last().Data.(events.BookCreatedData)
	require.True(t, ok)
	assert.Equal(t, bookID, data.BookID)

	result, err := env.books.SearchBooks(ctx, search.SearchParams{Query: "dune"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, bookID, result.Hits[0].ID)
}

func TestCreateBook_DuplicatesAllowed(t *testing.T) {
	env := setupTestEnv(t)

	first := env.createBook(t, "Dune", domain.CategoryFiction)
	second := env.createBook(t, "Dune", domain.CategoryFiction)

	assert.NotEqual(t, first, second)
}

func TestCreateBook_DefaultCategory(t *testing.T) {
	env := setupTestEnv(t)

	bookID := env.createBook(t, "Untitled Notes", "")

	assert.Equal(t, domain.CategoryDefault, env.book(t, bookID).Category)
}

func TestCreateBook_Validation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		draft domain.BookDraft
		field string
	}{
		{
			name:  "blank title",
			draft: domain.BookDraft{Title: "   ", Authors: []string{"A"}, Category: domain.CategoryFiction},
			field: "title",
		},
		{
			name:  "no authors",
			draft: domain.BookDraft{Title: "Dune", Category: domain.CategoryFiction},
			field: "authors",
		},
		{
			name:  "unknown category",
			draft: domain.BookDraft{Title: "Dune", Authors: []string{"A"}, Category: "Poetry"},
			field: "category",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.books.CreateBook(ctx, tt.draft)
			require.ErrorIs(t, err, domainerrors.ErrInvalidInput)

			var derr *domainerrors.Error
			require.ErrorAs(t, err, &derr)
			assert.Contains(t, derr.Details, tt.field)
		})
	}

	assert.Empty(t, env.publisher.Types())
}

func TestUpdateBook(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	bookID := env.createBook(t, "Dune", domain.CategoryFiction)

	update := domain.BookUpdate{
		Title:    "Dune (Deluxe Edition)",
		Authors:  []string{"Frank Herbert"},
		Year:     2005,
		Category: domain.CategoryFiction,
	}

	t.Run("not found", func(t *testing.T) {
		err := env.books.UpdateBook(ctx, "book-missing", update)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})

	t.Run("category change", func(t *testing.T) {
		changed := update
		changed.Category = domain.CategoryScientific
		err := env.books.UpdateBook(ctx, bookID, changed)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidTransition)
		assert.Equal(t, "Dune", env.book(t, bookID).Title)
	})

	t.Run("status towards borrowed", func(t *testing.T) {
		changed := update
		borrowed := domain.BookBorrowed
		changed.Status = &borrowed
		err := env.books.UpdateBook(ctx, bookID, changed)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidTransition)
	})

	t.Run("success", func(t *testing.T) {
		env.clock.Advance(time.Hour)
		require.NoError(t, env.books.UpdateBook(ctx, bookID, update))

		book := env.book(t, bookID)
		assert.Equal(t, "Dune (Deluxe Edition)", book.Title)
		assert.Equal(t, 2005, book.Year)
		assert.Equal(t, env.clock.Now(), book.UpdatedAt)
		assert.Equal(t, domain.BookAvailable, book.Status)
	})

	t.Run("archive through update", func(t *testing.T) {
		changed := update
		archived := domain.BookArchived
		changed.Status = &archived
		require.NoError(t, env.books.UpdateBook(ctx, bookID, changed))

		book := env.book(t, bookID)
		assert.Equal(t, domain.BookArchived, book.Status)
		assert.True(t, book.IsArchived)
		assert.Equal(t, events.EventBookArchived, env.publisher.Last().Type)
	})
}

func TestArchiveBook(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	bookID := env.createBook(t, "Dune", domain.CategoryFiction)

	book, err := env.books.ArchiveBook(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookArchived, book.Status)
	assert.True(t, book.IsArchived)

	stored := env.book(t, bookID)
	assert.Equal(t, domain.BookArchived, stored.Status)
	assert.True(t, stored.IsArchived)
	assert.Equal(t, events.EventBookArchived, env.publisher.Last().Type)

	_, err = env.books.ArchiveBook(ctx, bookID)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidTransition)

	_, err = env.books.ArchiveBook(ctx, "book-missing")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestArchiveBook_ExcludedFromAvailableSearch(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	bookID := env.createBook(t, "Dune", domain.CategoryFiction)

	_, err := env.books.ArchiveBook(ctx, bookID)
	require.NoError(t, err)

	result, err := env.books.SearchBooks(ctx, search.SearchParams{Query: "dune", ExcludeArchived: true})
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

func TestGetBooks_Paging(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	var all []string
	for _, title := range []string{"Dune", "Emma", "Ulysses"} {
		all = append(all, env.createBook(t, title, domain.CategoryFiction))
		env.clock.Advance(time.Minute)
	}

	tests := []struct {
		name     string
		page     int
		pageSize int
		want     []string
	}{
		{"first page", 1, 2, all[:2]},
		{"second page", 2, 2, all[2:]},
		{"past the end", 3, 2, []string{}},
		{"defaults", 0, 0, all},
		{"negative page", -4, 1, all[:1]},
		{"huge page", math.MaxInt/MaxPageSize + 2, MaxPageSize, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, err := env.books.GetBooks(ctx, domain.BookFilter{}, tt.page, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bookIDs(books))
		})
	}

	_, err := env.books.GetBooks(ctx, domain.BookFilter{}, 1, MaxPageSize+1)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestGetBooks_Filter(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	dune := env.createBook(t, "Dune", domain.CategoryFiction, "Frank Herbert")
	env.createBook(t, "A Brief History of Time", domain.CategoryScientific, "Stephen Hawking")
	omens := env.createBook(t, "Good Omens", domain.CategoryFiction, "Terry Pratchett", "Neil Gaiman")

	fiction := domain.CategoryFiction
	books, err := env.books.GetBooks(ctx, domain.BookFilter{Category: &fiction}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{dune, omens}, bookIDs(books))

	books, err = env.books.GetBooks(ctx, domain.BookFilter{Authors: []string{" Neil  Gaiman "}}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{omens}, bookIDs(books))
}

func TestGetBooks_CommasInAuthorFilter(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	roadside := env.createBook(t, "Roadside Picnic", domain.CategoryFiction, "Strugatsky,A", "B")

	books, err := env.books.GetBooks(ctx, domain.BookFilter{Authors: []string{"Strugatsky,A", "B"}}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{roadside}, bookIDs(books))

	// A different filter that joins to the same text gets its own cache entry.
	books, err = env.books.GetBooks(ctx, domain.BookFilter{Authors: []string{"Strugatsky", "A,B"}}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, books)
	assert.Len(t, env.cache.Members(ctx, cache.TagBooks), 2)
}

func TestGetBooks_CacheInvalidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	first := env.createBook(t, "Dune", domain.CategoryFiction)

	books, err := env.books.GetBooks(ctx, domain.BookFilter{}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, []string{first}, bookIDs(books))
	require.Len(t, env.cache.Members(ctx, cache.TagBooks), 1)

	// An entry under another tag must survive the book list invalidation.
	env.cache.Set(ctx, cache.BorrowKey("borrow-x"), "cached", 0)
	env.cache.TrackKey(ctx, cache.TagBorrows, cache.BorrowKey("borrow-x"))

	// A write that bypasses the service is not seen while the page is cached.
	hidden := domain.NewBook("book-hidden", domain.BookDraft{
		Title: "Hidden", Authors: []string{"Nobody"}, Category: domain.CategoryFiction,
	}, env.clock.Now().Add(time.Minute))
	require.NoError(t, env.store.Books().Create(ctx, hidden))

	books, err = env.books.GetBooks(ctx, domain.BookFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{first}, bookIDs(books))

	// Creating through the service clears every book list.
	env.clock.Advance(time.Hour)
	second := env.createBook(t, "Emma", domain.CategoryFiction)
	assert.Empty(t, env.cache.Members(ctx, cache.TagBooks))

	books, err = env.books.GetBooks(ctx, domain.BookFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{first, "book-hidden", second}, bookIDs(books))

	var unrelated string
	assert.True(t, env.cache.Get(ctx, cache.BorrowKey("borrow-x"), &unrelated))
	assert.Equal(t, "cached", unrelated)
}

func TestGetBookDetails(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	bookID := env.createBook(t, "Dune", domain.CategoryFiction)

	book, err := env.books.GetBookDetails(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, []string{cache.BookDetailsKey(bookID)}, env.cache.Members(ctx, cache.TagBookDetails))

	_, err = env.books.ArchiveBook(ctx, bookID)
	require.NoError(t, err)

	book, err = env.books.GetBookDetails(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookArchived, book.Status)

	_, err = env.books.GetBookDetails(ctx, "book-missing")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestUpdateBookDetails(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	bookID := env.createBook(t, "Dune", domain.CategoryFiction)
	cover := testPNG(t)

	t.Run("not found", func(t *testing.T) {
		err := env.books.UpdateBookDetails(ctx, "book-missing", "text", nil)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})

	t.Run("not an image", func(t *testing.T) {
		err := env.books.UpdateBookDetails(ctx, bookID, "text", &Cover{
			Data: []byte("%PDF-1.7"), FileName: "cover.pdf", ContentType: "application/pdf",
		})
		assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
		assert.Nil(t, env.book(t, bookID).CoverImagePath)
	})

	t.Run("description only", func(t *testing.T) {
		require.NoError(t, env.books.UpdateBookDetails(ctx, bookID, "<p>A <em>desert</em> planet.</p>", nil))

		book := env.book(t, bookID)
		assert.Equal(t, "A *desert* planet.", book.Description)
		assert.Nil(t, book.CoverImagePath)
	})

	t.Run("with cover", func(t *testing.T) {
		err := env.books.UpdateBookDetails(ctx, bookID, "Desert planet.", &Cover{
			Data: cover, FileName: "front cover.png", ContentType: "image/png",
		})
		require.NoError(t, err)

		book := env.book(t, bookID)
		require.NotNil(t, book.CoverImagePath)
		assert.Equal(t, "library/covers/"+bookID+"/front_cover.png", *book.CoverImagePath)
		assert.NotEmpty(t, book.CoverBlurHash)
		assert.True(t, env.storage.Exists("covers/"+bookID+"/front_cover.png"))

		url, err := env.books.CoverURL(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/files/library/covers/"+bookID+"/front_cover.png", url)
	})

	t.Run("replacing the cover removes the old object", func(t *testing.T) {
		err := env.books.UpdateBookDetails(ctx, bookID, "Desert planet.", &Cover{
			Data: cover, FileName: "back.png", ContentType: "image/png",
		})
		require.NoError(t, err)

		assert.True(t, env.storage.Exists("covers/"+bookID+"/back.png"))
		assert.False(t, env.storage.Exists("covers/"+bookID+"/front_cover.png"))
	})
}

func TestUpdateBookDetails_CoverTooLarge(t *testing.T) {
	env := setupTestEnv(t, func(o *Options) { o.MaxCoverSize = 64 })
	bookID := env.createBook(t, "Dune", domain.CategoryFiction)

	err := env.books.UpdateBookDetails(context.Background(), bookID, "", &Cover{
		Data: testPNG(t), FileName: "cover.png", ContentType: "image/png",
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	assert.False(t, env.storage.Exists("covers/"+bookID+"/cover.png"))
}

func TestUpdateBookDetails_UndecodableImageKeepsCover(t *testing.T) {
	env := setupTestEnv(t)
	bookID := env.createBook(t, "Dune", domain.CategoryFiction)

	err := env.books.UpdateBookDetails(context.Background(), bookID, "", &Cover{
		Data: []byte("not really a jpeg"), FileName: "cover.jpg", ContentType: "image/jpeg",
	})
	require.NoError(t, err)

	book := env.book(t, bookID)
	require.NotNil(t, book.CoverImagePath)
	assert.Empty(t, book.CoverBlurHash)
}

func TestCoverURL_NoCover(t *testing.T) {
	env := setupTestEnv(t)
	bookID := env.createBook(t, "Dune", domain.CategoryFiction)

	_, err := env.books.CoverURL(context.Background(), bookID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestSearchBooks(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	env.createBook(t, "Dune", domain.CategoryFiction, "Frank Herbert")
	hawking := env.createBook(t, "A Brief History of Time", domain.CategoryScientific, "Stephen Hawking")

	result, err := env.books.SearchBooks(ctx, search.SearchParams{Query: "hawking"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, hawking, result.Hits[0].ID)

	_, err = env.books.SearchBooks(ctx, search.SearchParams{Query: "x", Limit: MaxPageSize + 1})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestReindex(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.createBook(t, "Dune", domain.CategoryFiction)
	env.createBook(t, "Emma", domain.CategoryFiction)

	require.NoError(t, env.index.Rebuild())

	count, err := env.books.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	docs, err := env.index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), docs)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1, 2}, paginate(items, 1, 2))
	assert.Equal(t, []int{5}, paginate(items, 3, 2))
	assert.Equal(t, []int{}, paginate(items, 4, 2))
	assert.Equal(t, []int{}, paginate([]int(nil), 1, 10))
	assert.Equal(t, []int{}, paginate(items, math.MaxInt, 2))
	assert.Equal(t, []int{}, paginate(items, math.MaxInt/100+2, 100))
}
