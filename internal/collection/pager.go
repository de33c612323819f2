package collection

// TotalPages is ceil(count / pageSize).
func TotalPages(count, pageSize int) int {
	if count <= 0 || pageSize <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// PagerWindow returns at most width page numbers centered on current and
// clamped to [1, totalPages].
func PagerWindow(current, totalPages, width int) []int {
	if totalPages <= 0 || width <= 0 {
		return nil
	}
	start := max(current-width/2, 1)
	end := start + width - 1
	if end > totalPages {
		end = totalPages
		start = max(end-width+1, 1)
	}

	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}
