package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"rebook-service/internal/domain/entity"
	"rebook-service/internal/domain/repository"
	"rebook-service/pkg/logger"
	"rebook-service/pkg/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	hafasMaxResults = 10
	hafasCacheTTL   = 5 * time.Minute
)

// HafasClient talks to the DB transport.rest (HAFAS) API. It is shared by the
// train and bus backends: identical route queries issued concurrently collapse
// into one upstream call and results are cached briefly.
type HafasClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logger.Logger

	group singleflight.Group

	mu        sync.RWMutex
	locations map[string]string
	journeys  map[string]cachedJourneys
}

type cachedJourneys struct {
	fetchedAt time.Time
	options   []entity.TransitOption
}

// NewHafasClient creates a HAFAS client limited to requestsPerMinute upstream calls
func NewHafasClient(baseURL string, requestsPerMinute int, logger logger.Logger) *HafasClient {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 100
	}
	return &HafasClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 5),
		logger:     logger,
		locations:  make(map[string]string),
		journeys:   make(map[string]cachedJourneys),
	}
}

// Journeys returns every train and bus option for the request's route and date
func (c *HafasClient) Journeys(ctx context.Context, req entity.TravelRequest) ([]entity.TransitOption, error) {
	origin := utils.NormalizeCity(req.Origin)
	destination := utils.NormalizeCity(req.Destination)
	departure := req.DepartureDate + "T" + req.DepartureTime
	if req.DepartureTime == "" {
		departure = req.DepartureDate + "T00:00"
	}
	key := strings.Join([]string{origin, destination, departure}, "|")

	c.mu.RLock()
	cached, ok := c.journeys[key]
	c.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < hafasCacheTTL {
		c.logger.Debug("HAFAS cache hit", "key", key)
		return cached.options, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.journeys[key]
		c.mu.RUnlock()
		if ok && time.Since(cached.fetchedAt) < hafasCacheTTL {
			return cached.options, nil
		}

		// Shared by every caller collapsed onto key, so no single caller's
		// deadline or cancellation may end it
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.httpClient.Timeout)
		defer cancel()

		fromID, err := c.resolveLocation(fetchCtx, origin)
		if err != nil {
			return nil, err
		}
		toID, err := c.resolveLocation(fetchCtx, destination)
		if err != nil {
			return nil, err
		}

		options, err := c.fetchJourneys(fetchCtx, fromID, toID, departure)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.journeys[key] = cachedJourneys{fetchedAt: time.Now(), options: options}
		c.mu.Unlock()
		return options, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]entity.TransitOption), nil
	}
}

// resolveLocation resolves a city name to a HAFAS station id
func (c *HafasClient) resolveLocation(ctx context.Context, query string) (string, error) {
	c.mu.RLock()
	id, ok := c.locations[query]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("results", "1")
	params.Set("stops", "true")
	params.Set("addresses", "false")
	params.Set("poi", "false")

	var stations []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, "/locations", params, &stations); err != nil {
		return "", fmt.Errorf("failed to resolve location %q: %w", query, err)
	}
	if len(stations) == 0 || stations[0].ID == "" {
		return "", fmt.Errorf("no station found for %q", query)
	}

	c.mu.Lock()
	c.locations[query] = stations[0].ID
	c.mu.Unlock()

	c.logger.Debug("Resolved location", "query", query, "station", stations[0].Name, "id", stations[0].ID)
	return stations[0].ID, nil
}

type hafasJourneysResponse struct {
	Journeys []hafasJourney `json:"journeys"`
}

type hafasJourney struct {
	Legs  []hafasLeg `json:"legs"`
	Price *struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"price"`
}

type hafasLeg struct {
	Departure        string     `json:"departure"`
	PlannedDeparture string     `json:"plannedDeparture"`
	Arrival          string     `json:"arrival"`
	PlannedArrival   string     `json:"plannedArrival"`
	Walking          bool       `json:"walking"`
	Line             *hafasLine `json:"line"`
}

type hafasLine struct {
	Name        string `json:"name"`
	Mode        string `json:"mode"`
	Product     string `json:"product"`
	ProductName string `json:"productName"`
	Operator    *struct {
		Name string `json:"name"`
	} `json:"operator"`
}

func (c *HafasClient) fetchJourneys(ctx context.Context, fromID, toID, departure string) ([]entity.TransitOption, error) {
	params := url.Values{}
	params.Set("from", fromID)
	params.Set("to", toID)
	params.Set("departure", departure)
	params.Set("results", strconv.Itoa(hafasMaxResults))
	params.Set("tickets", "true")

	var resp hafasJourneysResponse
	if err := c.getJSON(ctx, "/journeys", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch journeys: %w", err)
	}

	options := make([]entity.TransitOption, 0, len(resp.Journeys))
	for _, journey := range resp.Journeys {
		if option, ok := parseJourney(journey); ok {
			options = append(options, option)
		}
	}
	return options, nil
}

func (c *HafasClient) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HAFAS returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseJourney converts one HAFAS journey. Walking legs are dropped; journeys
// without a transit leg or with unusable times are skipped.
func parseJourney(journey hafasJourney) (entity.TransitOption, bool) {
	if len(journey.Legs) == 0 {
		return entity.TransitOption{}, false
	}

	var transit []hafasLeg
	for _, leg := range journey.Legs {
		if leg.Line != nil && !leg.Walking {
			transit = append(transit, leg)
		}
	}
	if len(transit) == 0 {
		return entity.TransitOption{}, false
	}

	first, last := journey.Legs[0], journey.Legs[len(journey.Legs)-1]
	departure, err := parseHafasTime(first.Departure, first.PlannedDeparture)
	if err != nil {
		return entity.TransitOption{}, false
	}
	arrival, err := parseHafasTime(last.Arrival, last.PlannedArrival)
	if err != nil {
		return entity.TransitOption{}, false
	}
	duration := arrival.Sub(departure)
	if duration <= 0 {
		return entity.TransitOption{}, false
	}

	price := entity.Price{Amount: decimal.Zero, Currency: "EUR"}
	if journey.Price != nil {
		price.Amount = decimal.NewFromFloat(journey.Price.Amount)
		if journey.Price.Currency != "" {
			price.Currency = journey.Price.Currency
		}
	}

	line := transit[0].Line
	mode := entity.ModeTrain
	if line.Mode == "bus" || line.Product == "bus" || line.Product == "regionalBus" {
		mode = entity.ModeBus
	}

	provider := line.ProductName
	if line.Operator != nil && line.Operator.Name != "" {
		provider = line.Operator.Name
	}
	if provider == "" {
		provider = "DB"
	}

	legs := make([]entity.Leg, 0, len(transit))
	var names []string
	for _, leg := range transit {
		dep, depErr := parseHafasTime(leg.Departure, leg.PlannedDeparture)
		arr, arrErr := parseHafasTime(leg.Arrival, leg.PlannedArrival)
		if depErr == nil && arrErr == nil {
			legs = append(legs, entity.Leg{Line: leg.Line.Name, Departure: dep, Arrival: arr})
		}
		if leg.Line.Name != "" {
			names = append(names, leg.Line.Name)
		}
	}

	return entity.TransitOption{
		Mode:      mode,
		Provider:  provider,
		Source:    "hafas",
		Departure: departure,
		Arrival:   arrival,
		Duration:  duration,
		Price:     price,
		Transfers: len(transit) - 1,
		Legs:      legs,
		Details:   strings.Join(names, " → "),
	}, true
}

func parseHafasTime(actual, planned string) (time.Time, error) {
	value := actual
	if value == "" {
		value = planned
	}
	if value == "" {
		return time.Time{}, errors.New("missing time")
	}
	return time.Parse(time.RFC3339, value)
}

// modeSearch is a TransitSearcher that keeps the HAFAS options of one mode
type modeSearch struct {
	name   string
	mode   entity.Mode
	client *HafasClient
}

// NewTrainSearch returns the train backend
func NewTrainSearch(client *HafasClient) repository.TransitSearcher {
	return &modeSearch{name: "train", mode: entity.ModeTrain, client: client}
}

// NewBusSearch returns the bus backend
func NewBusSearch(client *HafasClient) repository.TransitSearcher {
	return &modeSearch{name: "bus", mode: entity.ModeBus, client: client}
}

func (s *modeSearch) Name() string { return s.name }

// Search returns the options of this backend's mode
func (s *modeSearch) Search(ctx context.Context, req entity.TravelRequest) ([]entity.TransitOption, error) {
	all, err := s.client.Journeys(ctx, req)
	if err != nil {
		return nil, err
	}

	var options []entity.TransitOption
	for _, option := range all {
		if option.Mode == s.mode {
			option.Source = s.name
			options = append(options, option)
		}
	}
	return options, nil
}
