// Command eventgen publishes synthetic change events, for exercising the
// refcache and archiver consumers against a real broker during development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/domain/flight"
	"github.com/flightdeck/backend/internal/domain/shared"
	"github.com/flightdeck/backend/internal/infrastructure/config"
	"github.com/flightdeck/backend/internal/infrastructure/eventbus"
	"github.com/flightdeck/backend/internal/infrastructure/logger"
)

var airlines = []struct{ id, name, iata string }{
	{"airline-ba", "British Airways", "BA"},
	{"airline-kl", "KLM", "KL"},
	{"airline-lh", "Lufthansa", "LH"},
}

var airports = []struct{ id, name, iata, city, country string }{
	{"airport-lhr", "Heathrow", "LHR", "London", "GB"},
	{"airport-ams", "Schiphol", "AMS", "Amsterdam", "NL"},
	{"airport-fra", "Frankfurt am Main", "FRA", "Frankfurt", "DE"},
	{"airport-cdg", "Charles de Gaulle", "CDG", "Paris", "FR"},
}

func main() {
	var (
		kind     string
		count    int
		interval time.Duration
	)
	flag.StringVar(&kind, "kind", "flight", "Event kind to publish: flight or reference")
	flag.IntVar(&count, "count", 10, "Number of events to publish")
	flag.DurationVar(&interval, "interval", 100*time.Millisecond, "Delay between events")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	topic := cfg.Kafka.FlightTopic
	if kind == "reference" {
		topic = cfg.Kafka.ReferenceTopic
	}

	publisher := eventbus.NewKafkaPublisher(eventbus.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
	}, topic, log)
	defer publisher.Close()

	ctx := context.Background()
	for i := 0; i < count; i++ {
		var event shared.ChangeEvent
		switch kind {
		case "reference":
			event = referenceEvent()
		default:
			event = flightEvent(i)
		}
		if err := publisher.Publish(ctx, event); err != nil {
			log.Fatal("Publish failed", zap.Error(err), zap.Int("published", i))
		}
		time.Sleep(interval)
	}

	log.Info("Done", zap.Int("count", count), zap.String("topic", topic))
}

func referenceEvent() shared.ChangeEvent {
	if rand.Intn(2) == 0 {
		a := airlines[rand.Intn(len(airlines))]
		payload, _ := json.Marshal(flight.AirlineRef{ID: a.id, Name: a.name, IATACode: a.iata})
		return shared.NewChangeEvent("AIRLINE_UPDATED", "AIRLINE", a.id, payload)
	}
	a := airports[rand.Intn(len(airports))]
	payload, _ := json.Marshal(flight.AirportRef{ID: a.id, Name: a.name, IATACode: a.iata, City: a.city, Country: a.country})
	return shared.NewChangeEvent("AIRPORT_UPDATED", "AIRPORT", a.id, payload)
}

func flightEvent(seq int) shared.ChangeEvent {
	airline := airlines[rand.Intn(len(airlines))]
	origin := airports[rand.Intn(len(airports))]
	dest := airports[rand.Intn(len(airports))]
	departure := time.Now().UTC().Add(time.Duration(1+rand.Intn(48)) * time.Hour)
	fare := decimal.NewFromFloat(float64(5000+rand.Intn(40000)) / 100)

	ev := flight.Event{
		ID:            fmt.Sprintf("flight-%d-%d", time.Now().Unix(), seq),
		FlightNumber:  fmt.Sprintf("%s%d", airline.iata, 100+rand.Intn(900)),
		Status:        flight.StatusScheduled,
		DepartureTime: flight.NewFlexTime(departure),
		ArrivalTime:   flight.NewFlexTime(departure.Add(2 * time.Hour)),
		Fare:          &fare,
		Currency:      "EUR",
		Airline:       &flight.AirlineRef{ID: airline.id, Name: airline.name, IATACode: airline.iata},
		Origin:        &flight.AirportRef{ID: origin.id, Name: origin.name, IATACode: origin.iata},
		Destination:   &flight.AirportRef{ID: dest.id, Name: dest.name, IATACode: dest.iata},
	}
	payload, _ := json.Marshal(ev)
	return shared.NewChangeEvent("FLIGHT_CREATED", "FLIGHT", ev.ID, payload)
}
