package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	gtfsrtproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/transitmatters/gobble/business/data/config"
	"github.com/transitmatters/gobble/foundation/httpclient"
)

const (
	// gtfsrtBackoffTimeout replaces the default request timeout for one cycle
	// after a timed out poll, assuming the upstream is rate limiting.
	gtfsrtBackoffTimeout = 300 * time.Second
)

// GTFSRTSource polls a GTFS-RT VehiclePositions feed and emits updates for
// an allow-listed route set, deduplicating between polls.
type GTFSRTSource struct {
	log    *log.Logger
	queue  *updateQueue
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGTFSRTSource starts polling feed every feed.PollingInterval seconds for
// updates on the given routes.
func NewGTFSRTSource(log *log.Logger, feed config.GTFSRTFeed, routes map[string]bool, now func() time.Time) (*GTFSRTSource, error) {
	requestURL, err := feedRequestURL(feed)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	source := &GTFSRTSource{
		log:    log,
		queue:  newUpdateQueue(log),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	poller := &gtfsrtPoller{
		log:      log,
		queue:    source.queue,
		url:      requestURL,
		feed:     feed,
		routes:   routes,
		now:      now,
		deduper:  newDeduper(),
		timeout:  httpclient.DefaultTimeout,
		interval: time.Duration(feed.PollingInterval) * time.Second,
	}
	go func() {
		defer close(source.done)
		poller.run(ctx)
	}()
	return source, nil
}

// Next returns the next deduplicated vehicle update.
func (s *GTFSRTSource) Next(ctx context.Context) (*VehicleUpdate, error) {
	return s.queue.next(ctx)
}

// Close stops the polling loop.
func (s *GTFSRTSource) Close() {
	s.cancel()
	<-s.done
}

type gtfsrtPoller struct {
	log      *log.Logger
	queue    *updateQueue
	url      string
	feed     config.GTFSRTFeed
	routes   map[string]bool
	now      func() time.Time
	deduper  *deduper
	timeout  time.Duration
	interval time.Duration
}

func (p *gtfsrtPoller) run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		p.poll()
		timer.Reset(p.interval)
	}
}

// poll fetches and decodes one feed snapshot. Errors drop the snapshot; a
// timeout additionally stretches the next request's deadline.
func (p *gtfsrtPoller) poll() {
	client := &http.Client{Timeout: p.timeout}
	contents, err := p.fetch(client)
	if err != nil {
		if isTimeout(err) {
			p.log.Printf("warning: feed poll timed out, raising timeout to %s: %v", gtfsrtBackoffTimeout, err)
			p.timeout = gtfsrtBackoffTimeout
		} else {
			p.log.Printf("warning: feed poll failed: %v", err)
		}
		return
	}
	p.timeout = httpclient.DefaultTimeout

	var feed gtfsrtproto.FeedMessage
	if err := proto.Unmarshal(contents, &feed); err != nil {
		p.log.Printf("warning: dropping undecodable feed snapshot: %v", err)
		parseFailures.Inc()
		return
	}

	seen := make(map[string]bool)
	for _, entity := range feed.GetEntity() {
		vehicle := entity.GetVehicle()
		if vehicle == nil {
			continue
		}
		update := p.toUpdate(vehicle)
		if update == nil {
			continue
		}
		seen[update.TripID] = true
		if p.deduper.shouldEmit(update) {
			p.queue.push(update)
		}
	}
	p.deduper.evictMissing(seen)
}

func (p *gtfsrtPoller) fetch(client *http.Client) ([]byte, error) {
	request, err := http.NewRequest(http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	switch p.feed.APIKeyMethod {
	case "header":
		request.Header.Set(p.feed.APIKeyParamName, p.feed.APIKey)
	case "bearer":
		request.Header.Set("Authorization", "Bearer "+p.feed.APIKey)
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = response.Body.Close()
	}()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %s", p.url, response.Status)
	}
	return io.ReadAll(response.Body)
}

// toUpdate maps one VehiclePosition to the canonical record. Positions
// without a trip, without a route, or on an unmonitored route are dropped. A
// missing stop is kept, a missing timestamp takes the wall clock.
func (p *gtfsrtPoller) toUpdate(vehicle *gtfsrtproto.VehiclePosition) *VehicleUpdate {
	trip := vehicle.GetTrip()
	if trip.GetTripId() == "" || trip.GetRouteId() == "" {
		return nil
	}
	if p.routes != nil && !p.routes[trip.GetRouteId()] {
		return nil
	}

	updatedAt := p.now()
	if vehicle.Timestamp != nil {
		updatedAt = time.Unix(int64(vehicle.GetTimestamp()), 0)
	}

	update := VehicleUpdate{
		RouteID:      trip.GetRouteId(),
		TripID:       trip.GetTripId(),
		DirectionID:  int(trip.GetDirectionId()),
		VehicleID:    vehicle.GetVehicle().GetId(),
		VehicleLabel: vehicle.GetVehicle().GetLabel(),
		StopID:       vehicle.GetStopId(),
		StopSequence: int(vehicle.GetCurrentStopSequence()),
		Status:       StopStatus(vehicle.GetCurrentStatus()),
		UpdatedAt:    updatedAt,
	}
	if vehicle.OccupancyStatus != nil {
		update.OccupancyStatus = vehicle.GetOccupancyStatus().String()
	}
	if vehicle.OccupancyPercentage != nil {
		percentage := int(vehicle.GetOccupancyPercentage())
		update.OccupancyPercentage = &percentage
	}
	for _, carriage := range vehicle.GetMultiCarriageDetails() {
		mapped := Carriage{Label: carriage.GetLabel()}
		if carriage.OccupancyStatus != nil {
			mapped.OccupancyStatus = carriage.GetOccupancyStatus().String()
		}
		if carriage.OccupancyPercentage != nil {
			percentage := int(carriage.GetOccupancyPercentage())
			mapped.OccupancyPercentage = &percentage
		}
		update.Carriages = append(update.Carriages, mapped)
	}
	return &update
}

// feedRequestURL attaches query-method auth without clobbering existing
// query parameters.
func feedRequestURL(feed config.GTFSRTFeed) (string, error) {
	parsed, err := url.Parse(feed.FeedURL)
	if err != nil {
		return "", fmt.Errorf("parsing feed url: %w", err)
	}
	if feed.APIKeyMethod == "query" {
		query := parsed.Query()
		query.Set(feed.APIKeyParamName, feed.APIKey)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
