package users

// DefaultPerPage is the number of users shown per page.
const DefaultPerPage = 10

// Page is one page of a user list.
type Page struct {
	Items []User `json:"items" yaml:"items"`
	// Number is 1-based.
	Number int `json:"page" yaml:"page"`
	// Total is the number of pages; at least 1.
	Total int `json:"totalPages" yaml:"totalPages"`
	// Count is the number of users across all pages.
	Count int `json:"count" yaml:"count"`
}

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool { return p.Number < p.Total }

// HasPrev reports whether an earlier page exists.
func (p Page) HasPrev() bool { return p.Number > 1 }

// Paginate slices users into pages of perPage and returns page number. The
// page number is clamped to the valid range.
func Paginate(users []User, number, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total := (len(users) + perPage - 1) / perPage
	if total == 0 {
		total = 1
	}
	if number < 1 {
		number = 1
	}
	if number > total {
		number = total
	}

	start := (number - 1) * perPage
	end := min(start+perPage, len(users))
	return Page{
		Items:  users[start:end],
		Number: number,
		Total:  total,
		Count:  len(users),
	}
}
