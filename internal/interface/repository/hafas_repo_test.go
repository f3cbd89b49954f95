package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rebook-service/internal/domain/entity"
	"rebook-service/pkg/logger"
)

const journeysFixture = `{
  "journeys": [
    {
      "legs": [
        {"departure": "2025-03-01T08:00:00+01:00", "arrival": "2025-03-01T08:10:00+01:00", "walking": true},
        {"departure": "2025-03-01T08:12:00+01:00", "arrival": "2025-03-01T12:00:00+01:00",
         "line": {"name": "ICE 9553", "mode": "train", "product": "nationalExpress", "productName": "ICE", "operator": {"name": "DB Fernverkehr AG"}}},
        {"departure": "2025-03-01T12:40:00+01:00", "arrival": "2025-03-01T16:00:00+01:00",
         "line": {"name": "ICE 1011", "mode": "train", "product": "nationalExpress", "productName": "ICE"}}
      ],
      "price": {"amount": 89.9, "currency": "EUR"}
    },
    {
      "legs": [
        {"plannedDeparture": "2025-03-01T07:00:00+01:00", "plannedArrival": "2025-03-01T21:00:00+01:00",
         "line": {"name": "FlixBus N705", "mode": "bus", "product": "bus", "productName": "Bus", "operator": {"name": "FlixBus"}}}
      ],
      "price": {"amount": 40, "currency": "EUR"}
    },
    {
      "legs": [
        {"departure": "2025-03-01T09:00:00+01:00", "arrival": "2025-03-01T09:30:00+01:00", "walking": true}
      ]
    }
  ]
}`

func newHafasServer(t *testing.T, journeyCalls *int32) *httptest.Server {
	t.Helper()
	return newSlowHafasServer(t, journeyCalls, 0)
}

// newSlowHafasServer delays every station lookup by locationDelay
func newSlowHafasServer(t *testing.T, journeyCalls *int32, locationDelay time.Duration) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/locations", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(locationDelay)
		switch r.URL.Query().Get("query") {
		case "Paris":
			w.Write([]byte(`[{"id": "8796001", "name": "Paris Est"}]`))
		case "Berlin":
			w.Write([]byte(`[{"id": "8011160", "name": "Berlin Hbf"}]`))
		default:
			w.Write([]byte(`[]`))
		}
	})
	mux.HandleFunc("/journeys", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(journeyCalls, 1)
		q := r.URL.Query()
		if q.Get("from") != "8796001" || q.Get("to") != "8011160" || q.Get("tickets") != "true" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Write([]byte(journeysFixture))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func parisBerlin() entity.TravelRequest {
	return entity.TravelRequest{
		ResponseID:     "resp-1",
		Origin:         "파리",
		Destination:    "Berlin",
		DepartureDate:  "2025-03-01",
		DepartureTime:  "08:00",
		PassengerCount: 1,
	}
}

func TestHafasClient_Journeys(t *testing.T) {
	var calls int32
	srv := newHafasServer(t, &calls)
	client := NewHafasClient(srv.URL, 6000, logger.NewNopLogger())

	options, err := client.Journeys(context.Background(), parisBerlin())
	require.NoError(t, err)
	require.Len(t, options, 2)

	train := options[0]
	assert.Equal(t, entity.ModeTrain, train.Mode)
	assert.Equal(t, "DB Fernverkehr AG", train.Provider)
	assert.Equal(t, 1, train.Transfers)
	assert.Equal(t, 8*time.Hour, train.Duration)
	assert.Equal(t, "ICE 9553 → ICE 1011", train.Details)
	assert.True(t, train.Price.Amount.Equal(decimal.NewFromFloat(89.9)))
	require.Len(t, train.Legs, 2)
	assert.Equal(t, 40*time.Minute, train.LongestLayover())

	bus := options[1]
	assert.Equal(t, entity.ModeBus, bus.Mode)
	assert.Equal(t, "FlixBus", bus.Provider)
	assert.Equal(t, 0, bus.Transfers)
	assert.Equal(t, 14*time.Hour, bus.Duration)
}

func TestHafasClient_CachesRoute(t *testing.T) {
	var calls int32
	srv := newHafasServer(t, &calls)
	client := NewHafasClient(srv.URL, 6000, logger.NewNopLogger())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Journeys(context.Background(), parisBerlin())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := client.Journeys(context.Background(), parisBerlin())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHafasClient_SharedSearchOutlivesFirstCallerDeadline(t *testing.T) {
	var calls int32
	srv := newSlowHafasServer(t, &calls, 150*time.Millisecond)
	client := NewHafasClient(srv.URL, 6000, logger.NewNopLogger())

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shortCancel()
	longCtx, longCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer longCancel()

	shortErr := make(chan error, 1)
	go func() {
		_, err := client.Journeys(shortCtx, parisBerlin())
		shortErr <- err
	}()

	// Join the search the short caller started
	time.Sleep(10 * time.Millisecond)
	options, err := client.Journeys(longCtx, parisBerlin())

	require.NoError(t, err)
	assert.NotEmpty(t, options)
	assert.ErrorIs(t, <-shortErr, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHafasClient_UnknownStation(t *testing.T) {
	var calls int32
	srv := newHafasServer(t, &calls)
	client := NewHafasClient(srv.URL, 6000, logger.NewNopLogger())

	req := parisBerlin()
	req.Destination = "Atlantis"
	_, err := client.Journeys(context.Background(), req)
	assert.ErrorContains(t, err, "no station found")
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestHafasClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHafasClient(srv.URL, 6000, logger.NewNopLogger())
	_, err := client.Journeys(context.Background(), parisBerlin())
	assert.ErrorContains(t, err, "status 503")
}

func TestModeSearch_FiltersByMode(t *testing.T) {
	var calls int32
	srv := newHafasServer(t, &calls)
	client := NewHafasClient(srv.URL, 6000, logger.NewNopLogger())

	trains := NewTrainSearch(client)
	buses := NewBusSearch(client)
	assert.Equal(t, "train", trains.Name())
	assert.Equal(t, "bus", buses.Name())

	trainOptions, err := trains.Search(context.Background(), parisBerlin())
	require.NoError(t, err)
	require.Len(t, trainOptions, 1)
	assert.Equal(t, "train", trainOptions[0].Source)

	busOptions, err := buses.Search(context.Background(), parisBerlin())
	require.NoError(t, err)
	require.Len(t, busOptions, 1)
	assert.Equal(t, "bus", busOptions[0].Source)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestModeSearch_HonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewHafasClient(srv.URL, 6000, logger.NewNopLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewTrainSearch(client).Search(ctx, parisBerlin())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
