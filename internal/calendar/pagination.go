package calendar

// DefaultPageSize — размер страницы, если клиент его не указал.
const DefaultPageSize = 50

// Page — одна страница списка и её метаданные.
type Page[T any] struct {
	Items    []T
	Page     int // с 1
	PageSize int
	HasNext  bool
	HasPrev  bool
	Total    int
}

// PageWindow нормализует номер и размер страницы и возвращает
// смещение её первого элемента.
func PageWindow(page, pageSize int) (int, int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}

// NewPage оборачивает уже выбранный срез; total — размер всего списка.
func NewPage[T any](items []T, page, pageSize, total int) Page[T] {
	page, pageSize, offset := PageWindow(page, pageSize)
	return Page[T]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		HasPrev:  page > 1,
		HasNext:  offset+len(items) < total,
		Total:    total,
	}
}

// Paginate вырезает страницу из списка, целиком загруженного в память.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	page, pageSize, offset := PageWindow(page, pageSize)
	total := len(items)

	from := min(offset, total)
	to := min(from+pageSize, total)

	return NewPage(items[from:to], page, pageSize, total)
}
