package stream

import "github.com/amaumene/moviematch/internal/models"

// Buffer is the append-only swipe queue of one session. It is not safe for
// concurrent use; Session serializes access.
type Buffer struct {
	items  []models.ResultItem
	ids    map[int]struct{}
	cursor int
}

func NewBuffer() *Buffer {
	return &Buffer{ids: make(map[int]struct{})}
}

func (b *Buffer) Len() int {
	return len(b.items)
}

func (b *Buffer) Cursor() int {
	return b.cursor
}

// Current returns the item under the cursor, wrapping around the end.
func (b *Buffer) Current() (models.ResultItem, bool) {
	if len(b.items) == 0 {
		return models.ResultItem{}, false
	}
	return b.items[b.cursor%len(b.items)], true
}

func (b *Buffer) Advance() {
	b.cursor++
}

// Remaining is the number of items not yet reached by the cursor.
func (b *Buffer) Remaining() int {
	if r := len(b.items) - b.cursor; r > 0 {
		return r
	}
	return 0
}

// Append adds the items whose TMDB id is not already buffered and returns
// how many were added.
func (b *Buffer) Append(batch []models.ResultItem) int {
	added := 0
	for _, item := range batch {
		if _, dup := b.ids[item.TMDBID]; dup {
			continue
		}
		b.ids[item.TMDBID] = struct{}{}
		b.items = append(b.items, item)
		added++
	}
	return added
}

// Upcoming returns the n items after the cursor, wrapping around the end.
func (b *Buffer) Upcoming(n int) []models.ResultItem {
	return b.window(b.cursor+1, n)
}

// FromCursor returns n items starting at the cursor.
func (b *Buffer) FromCursor(n int) []models.ResultItem {
	return b.window(b.cursor, n)
}

func (b *Buffer) window(from, n int) []models.ResultItem {
	if len(b.items) == 0 || n <= 0 {
		return nil
	}
	out := make([]models.ResultItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, b.items[(from+i)%len(b.items)])
	}
	return out
}

// Items returns a copy of the buffered items in insertion order.
func (b *Buffer) Items() []models.ResultItem {
	return append([]models.ResultItem(nil), b.items...)
}
