package cache

import (
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Tags group cache entries for bulk invalidation.
const (
	// TagBooks holds every book list page.
	TagBooks = "Books:Keys"
	// TagBookDetails holds every book detail entry.
	TagBookDetails = "Books:Details:Keys"
	// TagBorrows holds every borrow detail entry.
	TagBorrows = "Borrow:Keys"
	// TagAvailableBooks holds every available-books result.
	TagAvailableBooks = "AvailableBooks:Keys"
)

// KeySeparator separates the segments of a serialized key.
const KeySeparator = "::"

// BookDetailsKey is the cache key of a single book's detail view.
func BookDetailsKey(bookID string) string {
	return "Book:" + bookID + ":Details"
}

// BorrowKey is the cache key of a single borrow.
func BorrowKey(borrowID string) string {
	return "Borrow:" + borrowID
}

// KeySerializer builds deterministic cache keys from a method name and its
// arguments. Pointers are followed, maps are ordered by key and structs are
// written field by field, so equal arguments always give the same key.
// Strings are quoted, so separators inside a value cannot merge two
// different argument lists into one key.
type KeySerializer struct{}

// SerializeKey joins method and the serialized args with KeySeparator.
//
//	SerializeKey("Books", domain.BookFilter{Year: 1965}, 1, 20)
//	// Books::struct:{Category:nil,Status:nil,Authors:slice:nil,Year:1965,ExcludeArchived:false}::1::20
func (s KeySerializer) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.serializeValue(reflect.ValueOf(arg)))
	}
	return strings.Join(parts, KeySeparator)
}

var textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()

func (s KeySerializer) serializeValue(rv reflect.Value) string {
	if !rv.IsValid() {
		return "nil"
	}

	// time.Time and friends have only unexported fields; use their text form.
	if rv.Kind() != reflect.Pointer && rv.Kind() != reflect.Interface && rv.Type().Implements(textMarshalerType) {
		if text, err := rv.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
			return strconv.Quote(string(text))
		}
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return fmt.Sprintf("slice[%d]:{%s}", rv.Len(), s.serializeElems(rv))
	case reflect.Array:
		return fmt.Sprintf("array[%d]:{%s}", rv.Len(), s.serializeElems(rv))
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.serializeMap(rv)
	case reflect.Struct:
		return s.serializeStruct(rv)
	case reflect.String:
		return strconv.Quote(rv.String())
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("%s:%#x", rv.Kind(), rv.Pointer())
	default:
		return fmt.Sprintf("%v", rv.Interface())
	}
}

func (s KeySerializer) serializeElems(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range rv.Len() {
		parts[i] = s.serializeValue(rv.Index(i))
	}
	return strings.Join(parts, ",")
}

func (s KeySerializer) serializeMap(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.serializeValue(iter.Key())+"="+s.serializeValue(iter.Value()))
	}
	slices.Sort(pairs)
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func (s KeySerializer) serializeStruct(rv reflect.Value) string {
	rt := rv.Type()
	parts := make([]string, 0, rv.NumField())
	for i := range rv.NumField() {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+s.serializeValue(rv.Field(i)))
	}
	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}
