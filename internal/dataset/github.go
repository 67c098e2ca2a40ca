package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	apphttp "ForexDash/pkg/http"
	"ForexDash/pkg/util"
)

// DefaultGitHubBase hosts one JSON array per pair and timeframe.
const DefaultGitHubBase = "https://robinspt1999.github.io/forex-pair"

type githubPoint struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Open      float64         `json:"open"`
	High      float64         `json:"high"`
	Low       float64         `json:"low"`
	Close     float64         `json:"close"`
	Volume    float64         `json:"volume"`
}

// GitHubLoader fetches {base}/{pair}{timeframe}.json, e.g. EURUSD1m.json.
type GitHubLoader struct {
	client *apphttp.Client
}

// NewGitHubLoader expects a client whose base URL points at the pages site.
func NewGitHubLoader(client *apphttp.Client) *GitHubLoader {
	return &GitHubLoader{client: client}
}

func (l *GitHubLoader) Load(ctx context.Context, pair, timeframe string) ([]models.Tick, error) {
	if pair == "" || timeframe == "" || strings.ContainsAny(pair+timeframe, "/?#") {
		return nil, fmt.Errorf("%w: invalid pair %q timeframe %q", repository.ErrNotFound, pair, timeframe)
	}
	var points []githubPoint
	if err := l.client.GetJSON(ctx, "/"+pair+timeframe+".json", nil, &points); err != nil {
		if apphttp.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s%s", repository.ErrNotFound, pair, timeframe)
		}
		return nil, fmt.Errorf("fetch %s%s: %w", pair, timeframe, err)
	}

	ticks := make([]models.Tick, 0, len(points))
	for i, p := range points {
		raw := strings.Trim(string(p.Timestamp), `"`)
		ts, ok := util.ParseTime(raw)
		if !ok {
			return nil, fmt.Errorf("%s%s point %d: bad timestamp %q", pair, timeframe, i, raw)
		}
		ticks = append(ticks, models.Tick{
			Timestamp: ts,
			Open:      p.Open,
			High:      p.High,
			Low:       p.Low,
			Close:     p.Close,
			Volume:    p.Volume,
		})
	}
	return inOrder(ticks), nil
}
