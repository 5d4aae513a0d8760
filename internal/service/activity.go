package service

import (
	"context"
	"strings"

	ua "github.com/mileusna/useragent"

	"bizportal/internal/models"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

type ActivityStore interface {
	ListActivity(ctx context.Context, q models.ActivityQuery) ([]models.ActivityRecord, int, error)
	AccountNames(ctx context.Context, ids []string) (map[string]string, error)
}

type ActivityService struct {
	store ActivityStore
}

func NewActivityService(st ActivityStore) *ActivityService {
	return &ActivityService{store: st}
}

// List returns one page of the activity log with actor names and a parsed
// client summary attached to each record.
func (s *ActivityService) List(ctx context.Context, q models.ActivityQuery) ([]models.ActivityRecord, int, error) {
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return nil, 0, invalid("from", "must not be after to")
	}
	switch strings.ToLower(strings.TrimSpace(q.Order)) {
	case "asc":
		q.Order = "asc"
	default:
		q.Order = "desc"
	}
	if q.Limit <= 0 {
		q.Limit = defaultActivityLimit
	}
	if q.Limit > maxActivityLimit {
		q.Limit = maxActivityLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	items, total, err := s.store.ListActivity(ctx, q)
	if err != nil {
		return nil, 0, internal("list activity", err)
	}

	ids := make([]string, 0, len(items))
	seen := map[string]bool{}
	for _, it := range items {
		if it.ActorID != nil && !seen[*it.ActorID] {
			seen[*it.ActorID] = true
			ids = append(ids, *it.ActorID)
		}
	}
	names, err := s.store.AccountNames(ctx, ids)
	if err != nil {
		return nil, 0, internal("resolve actor names", err)
	}
	for i := range items {
		if items[i].ActorID != nil {
			items[i].ActorName = names[*items[i].ActorID]
		}
		if items[i].ClientAgent != "" {
			c := SummarizeClient(items[i].ClientAgent)
			items[i].Client = &c
		}
	}
	return items, total, nil
}

// SummarizeClient reduces a User-Agent header to browser, OS and device class.
func SummarizeClient(agent string) models.ClientSummary {
	if strings.TrimSpace(agent) == "" {
		return models.ClientSummary{Browser: "Unknown Browser", OS: "Unknown OS", Device: "Desktop"}
	}
	parsed := ua.Parse(agent)
	out := models.ClientSummary{Browser: parsed.Name, OS: parsed.OS, Device: "Desktop"}
	if out.Browser == "" {
		out.Browser = "Unknown Browser"
	}
	if out.OS == "" {
		out.OS = "Unknown OS"
	}
	switch {
	case parsed.Bot:
		out.Device = "Bot"
	case parsed.Tablet:
		out.Device = "Tablet"
	case parsed.Mobile:
		out.Device = "Mobile"
	}
	return out
}
