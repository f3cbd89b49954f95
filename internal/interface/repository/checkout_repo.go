package repository

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"rebook-service/internal/domain/entity"
	"rebook-service/internal/domain/repository"
	"rebook-service/pkg/utils"
)

// bookingURLs are the operator landing pages used when no prefilled search URL can be built
var bookingURLs = map[string]string{
	"Deutsche Bahn":  "https://www.bahn.de/buchung/start",
	"DB":             "https://www.bahn.de/buchung/start",
	"ICE":            "https://www.bahn.de/buchung/start",
	"SNCF":           "https://www.sncf-connect.com/en-en",
	"TGV":            "https://www.sncf-connect.com/en-en",
	"OUIGO":          "https://www.ouigo.com/en/search",
	"Trenitalia":     "https://www.trenitalia.com/en/buying-your-ticket.html",
	"Frecciarossa":   "https://www.trenitalia.com/en/buying-your-ticket.html",
	"Italo":          "https://www.italotreno.it/en/booking",
	"Renfe":          "https://www.renfe.com/en/en/booking",
	"Eurostar":       "https://www.eurostar.com/en-gb/booking",
	"Thalys":         "https://www.thalys.com/en/booking",
	"SBB":            "https://www.sbb.ch/en/buying/pages/fahrplan/fahrplan.xhtml",
	"OBB":            "https://shop.oebb.at/en/ticket",
	"RailJet":        "https://shop.oebb.at/en/ticket",
	"NS":             "https://www.ns.nl/en/journeyplanner",
	"PKP":            "https://www.intercity.pl/en/booking",
	"Czech Railways": "https://www.cd.cz/en/booking",
	"RegioJet":       "https://www.regiojet.com/search",
	"BlaBlaBus":      "https://www.blablacar.com/bus",
	"Omio":           "https://www.omio.com/search",
}

var modeDefaultURLs = map[entity.Mode]string{
	entity.ModeTrain:  "https://www.omio.com/trains",
	entity.ModeBus:    "https://www.omio.com/buses",
	entity.ModeFlight: "https://www.omio.com/flights",
}

// CheckoutLinkBuilder implements BookingProvider by building provider booking
// links. No payment or reservation takes place.
type CheckoutLinkBuilder struct {
	expiry time.Duration
	now    func() time.Time
}

// NewCheckoutLinkBuilder creates a link builder whose links expire after expiry.
// A zero expiry yields links without expires_at.
func NewCheckoutLinkBuilder(expiry time.Duration) repository.BookingProvider {
	return &CheckoutLinkBuilder{expiry: expiry, now: time.Now}
}

// CreateCheckout returns the option's deep link when present, else a prefilled
// provider search URL
func (b *CheckoutLinkBuilder) CreateCheckout(ctx context.Context, option entity.ScoredOption, traveler entity.TravelerProfile) (entity.Checkout, error) {
	if err := ctx.Err(); err != nil {
		return entity.Checkout{}, err
	}

	checkoutURL := option.Option.DeepLink
	if checkoutURL == "" {
		checkoutURL = providerSearchURL(option.Option, traveler)
	}

	checkout := entity.Checkout{URL: checkoutURL}
	if b.expiry > 0 {
		expiresAt := b.now().UTC().Add(b.expiry)
		checkout.ExpiresAt = &expiresAt
	}
	return checkout, nil
}

func providerSearchURL(option entity.TransitOption, traveler entity.TravelerProfile) string {
	provider := strings.ToLower(option.Provider)
	origin := url.QueryEscape(utils.NormalizeCity(traveler.Origin))
	destination := url.QueryEscape(utils.NormalizeCity(traveler.Destination))
	date := traveler.DepartureDate
	clock := traveler.DepartureTime
	if clock == "" {
		clock = "09:00"
	}

	switch {
	case strings.Contains(provider, "sncf"), strings.Contains(provider, "tgv"), strings.Contains(provider, "ouigo"):
		return fmt.Sprintf("https://www.sncf-connect.com/app/en-en/home/search/od?origin=%s&destination=%s&outwardDate=%sT%s:00",
			origin, destination, url.QueryEscape(date), url.QueryEscape(clock))

	case provider == "db" || strings.HasPrefix(provider, "db ") || strings.Contains(provider, "deutsche bahn"):
		return fmt.Sprintf("https://int.bahn.de/en/buchung/fahrplan/suche#sts=true&so=%s&zo=%s&kl=2&r=%s",
			origin, destination, url.QueryEscape(germanDate(date)))

	case strings.Contains(provider, "flixbus"), strings.Contains(provider, "flixtrain"):
		return fmt.Sprintf("https://shop.flixbus.com/search?departureCity=%s&arrivalCity=%s&rideDate=%s&adult=%d&_locale=en_US",
			origin, destination, url.QueryEscape(date), max(traveler.PassengerCount, 1))
	}

	if link, ok := bookingURLs[option.Provider]; ok {
		return link
	}
	if link, ok := modeDefaultURLs[option.Mode]; ok {
		return link
	}
	return bookingURLs["Omio"]
}

// germanDate converts YYYY-MM-DD to DD.MM.YYYY
func germanDate(date string) string {
	t, err := time.Parse(entity.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02.01.2006")
}
