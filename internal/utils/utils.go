package utils

// ContainsString reports whether val is present in slice.
func ContainsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}

// UniqueStrings returns input without duplicates, keeping first occurrences in order.
func UniqueStrings(input []string) []string {
	seen := make(map[string]bool, len(input))
	result := make([]string, 0, len(input))
	for _, val := range input {
		if !seen[val] {
			result = append(result, val)
			seen[val] = true
		}
	}
	return result
}

// Paginate returns the 1-based page of items with the given size.
// A non-positive page or size returns items unchanged.
func Paginate(items []string, page, size int) []string {
	if page <= 0 || size <= 0 {
		return items
	}
	// Compare page counts so (page-1)*size cannot overflow.
	pages := len(items) / size
	if len(items)%size != 0 {
		pages++
	}
	if page > pages {
		return []string{}
	}
	start := (page - 1) * size
	end := len(items)
	if size < end-start {
		end = start + size
	}
	return items[start:end]
}
