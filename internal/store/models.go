package store

import "github.com/sakaguchiii/bus-notification/internal/domain"

// stopRow mirrors a row of the stops table.
type stopRow struct {
	Name      string
	Code      string
	Position  int
	UpdatedAt int64
}

func (r stopRow) toDomain() domain.Stop {
	return domain.Stop{Name: r.Name, Code: r.Code}
}
