package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/r3labs/sse/v2"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

// sseReconnectDelay is the minimum pause before reopening a dropped stream.
const sseReconnectDelay = 500 * time.Millisecond

// SSESource streams vehicle updates from a server-sent-events feed filtered
// to a route list. The connection lives until Close; drops reconnect after
// sseReconnectDelay.
type SSESource struct {
	log    *log.Logger
	queue  *updateQueue
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSSESource opens the stream and starts consuming in the background.
func NewSSESource(log *log.Logger, feedURL string, apiKey string, routes []string) (*SSESource, error) {
	streamURL, err := sseStreamURL(feedURL, routes)
	if err != nil {
		return nil, err
	}

	client := sse.NewClient(streamURL)
	client.Headers["Accept"] = "text/event-stream"
	if apiKey != "" {
		client.Headers["X-API-Key"] = apiKey
	}
	client.ReconnectStrategy = backoff.NewConstantBackOff(sseReconnectDelay)
	client.ReconnectNotify = func(err error, _ time.Duration) {
		log.Printf("warning: vehicle stream dropped, reconnecting: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	source := &SSESource{
		log:    log,
		queue:  newUpdateQueue(log),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(source.done)
		err := client.SubscribeRawWithContext(ctx, source.handleEvent)
		if err != nil && ctx.Err() == nil {
			log.Printf("vehicle stream subscription ended: %v", err)
		}
	}()
	return source, nil
}

// Next returns the next vehicle update from the stream.
func (s *SSESource) Next(ctx context.Context) (*VehicleUpdate, error) {
	return s.queue.next(ctx)
}

// Close tears down the stream connection.
func (s *SSESource) Close() {
	s.cancel()
	<-s.done
}

// handleEvent parses one stream event. update and add carry a single
// payload, reset carries the full list; anything else is ignored. Parse
// failures drop the event and never the stream.
func (s *SSESource) handleEvent(event *sse.Event) {
	switch string(event.Event) {
	case "update", "add":
		var payload ssePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			s.log.Printf("warning: skipping unparseable %s event: %v", event.Event, err)
			parseFailures.Inc()
			return
		}
		s.enqueue(&payload)
	case "reset":
		var payloads []ssePayload
		if err := json.Unmarshal(event.Data, &payloads); err != nil {
			s.log.Printf("warning: skipping unparseable reset event: %v", err)
			parseFailures.Inc()
			return
		}
		for i := range payloads {
			s.enqueue(&payloads[i])
		}
	}
}

func (s *SSESource) enqueue(payload *ssePayload) {
	update, err := payload.toUpdate()
	if err != nil {
		s.log.Printf("warning: skipping vehicle payload: %v", err)
		parseFailures.Inc()
		return
	}
	if update != nil {
		s.queue.push(update)
	}
}

// sseStreamURL appends the route filter to the feed url.
func sseStreamURL(feedURL string, routes []string) (string, error) {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return "", fmt.Errorf("parsing feed url: %w", err)
	}
	query := parsed.Query()
	query.Set("filter[route]", strings.Join(routes, ","))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// ssePayload is one vehicle resource from the stream, JSON:API shaped.
type ssePayload struct {
	ID         string `json:"id"`
	Attributes struct {
		Label               string `json:"label"`
		CurrentStatus       string `json:"current_status"`
		CurrentStopSequence int    `json:"current_stop_sequence"`
		DirectionID         int    `json:"direction_id"`
		OccupancyStatus     string `json:"occupancy_status"`
		UpdatedAt           string `json:"updated_at"`
		Carriages           []struct {
			Label               string `json:"label"`
			OccupancyStatus     string `json:"occupancy_status"`
			OccupancyPercentage *int   `json:"occupancy_percentage"`
		} `json:"carriages"`
	} `json:"attributes"`
	Relationships struct {
		Route sseRelationship `json:"route"`
		Stop  sseRelationship `json:"stop"`
		Trip  sseRelationship `json:"trip"`
	} `json:"relationships"`
}

type sseRelationship struct {
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (r sseRelationship) id() string {
	if r.Data == nil {
		return ""
	}
	return r.Data.ID
}

// toUpdate maps the payload to the canonical record. Payloads without a trip
// or route are unusable and return nil.
func (p *ssePayload) toUpdate() (*VehicleUpdate, error) {
	tripID := p.Relationships.Trip.id()
	routeID := p.Relationships.Route.id()
	if tripID == "" || routeID == "" {
		return nil, nil
	}

	updatedAt, err := time.Parse(time.RFC3339, p.Attributes.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("vehicle %s has malformed updated_at %q: %w", p.ID, p.Attributes.UpdatedAt, err)
	}

	update := VehicleUpdate{
		RouteID:             routeID,
		TripID:              tripID,
		DirectionID:         p.Attributes.DirectionID,
		VehicleID:           p.ID,
		VehicleLabel:        p.Attributes.Label,
		StopID:              p.Relationships.Stop.id(),
		StopSequence:        p.Attributes.CurrentStopSequence,
		Status:              ParseStopStatus(p.Attributes.CurrentStatus),
		UpdatedAt:           updatedAt,
		OccupancyStatus:     p.Attributes.OccupancyStatus,
		OccupancyPercentage: nil,
	}
	for _, carriage := range p.Attributes.Carriages {
		update.Carriages = append(update.Carriages, Carriage{
			Label:               carriage.Label,
			OccupancyStatus:     carriage.OccupancyStatus,
			OccupancyPercentage: carriage.OccupancyPercentage,
		})
	}
	return &update, nil
}
