package trip_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripweave/tripweave/cache"
	"github.com/tripweave/tripweave/events"
	"github.com/tripweave/tripweave/itinerary"
	"github.com/tripweave/tripweave/planner"
	"github.com/tripweave/tripweave/store"
	"github.com/tripweave/tripweave/trip"
)

// generatorStub returns a scripted result and records how it was called.
type generatorStub struct {
	gen       *planner.Generation
	err       error
	calls     int
	gotUserID string
	gotLang   string
}

func (g *generatorStub) Generate(ctx context.Context, _ itinerary.TripRequest, lang string) (*planner.Generation, error) {
	g.calls++
	g.gotUserID = planner.UserIDFrom(ctx)
	g.gotLang = lang
	if g.err != nil {
		return nil, g.err
	}
	return g.gen, nil
}

// capturePublisher records published events.
type capturePublisher struct {
	generated []events.Generated
	failed    []events.Failed
}

func (p *capturePublisher) PublishGenerated(_ context.Context, ev events.Generated) error {
	p.generated = append(p.generated, ev)
	return nil
}

func (p *capturePublisher) PublishFailed(_ context.Context, ev events.Failed) error {
	p.failed = append(p.failed, ev)
	return nil
}

func kyotoPlan() *itinerary.Itinerary {
	return &itinerary.Itinerary{
		Destination: "Kyoto",
		Duration:    2,
		DailySchedules: []itinerary.DailySchedule{
			{Day: 1, Activities: []itinerary.Activity{
				{Time: "09:00", Name: "Fushimi Inari", Location: "Fushimi", Description: "Shrine walk"},
				{Time: "12:30", Name: "Lunch", Location: "Market", Description: "Street food"},
				{Time: "15:00", Name: "Gion", Location: "Gion", Description: "Old town"},
			}},
			{Day: 2, Activities: []itinerary.Activity{
				{Time: "09:30", Name: "Arashiyama", Location: "West Kyoto", Description: "Bamboo grove"},
				{Time: "13:00", Name: "Tea", Location: "Arashiyama", Description: "Tea house"},
				{Time: "16:00", Name: "River walk", Location: "Katsura", Description: "Sunset"},
			}},
		},
		Recommendations: []itinerary.Recommendation{
			{Category: itinerary.CategoryPlace, Name: "Kinkaku-ji", Description: "Golden pavilion"},
		},
	}
}

func TestService_GenerateAndCache(t *testing.T) {
	gen := &generatorStub{gen: &planner.Generation{
		Itinerary: kyotoPlan(),
		Model:     "gemini-flash",
		Attempts:  2,
	}}
	pub := &capturePublisher{}
	mem := store.NewMemory()
	svc := trip.New(gen, mem,
		trip.WithCache(cache.New(8, 0)),
		trip.WithEvents(pub))
	ctx := context.Background()

	req := itinerary.TripRequest{Destination: " Kyoto ", Duration: 2}
	rec, err := svc.Generate(ctx, "user-a", req, "en", false)
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, "Kyoto", rec.Destination, "destination is trimmed")
	assert.Equal(t, "gemini-flash", rec.Model)
	assert.Equal(t, "user-a", gen.gotUserID, "user id travels on the context")

	got, err := svc.Get(ctx, "user-a", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Payload.Duration)

	require.Len(t, pub.generated, 1)
	assert.Equal(t, rec.ID, pub.generated[0].ItineraryID)
	assert.Equal(t, 2, pub.generated[0].Attempts)

	// The identical request is served from cache: no second cascade run,
	// but a fresh record the user owns.
	rec2, err := svc.Generate(ctx, "user-a", req, "en", false)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.NotEqual(t, rec.ID, rec2.ID)
	assert.Equal(t, "gemini-flash", rec2.Model, "cached records keep their true producer")

	require.Len(t, pub.generated, 2)
	assert.Equal(t, 0, pub.generated[1].Attempts, "cache hits publish zero attempts")

	_, total, err := svc.History(ctx, "user-a", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestService_CacheBypass(t *testing.T) {
	gen := &generatorStub{gen: &planner.Generation{
		Itinerary: kyotoPlan(),
		Model:     "gemini-flash",
		Attempts:  1,
	}}
	svc := trip.New(gen, store.NewMemory(), trip.WithCache(cache.New(8, 0)))
	ctx := context.Background()
	req := itinerary.TripRequest{Destination: "Kyoto", Duration: 2}

	_, err := svc.Generate(ctx, "user-a", req, "en", false)
	require.NoError(t, err)
	_, err = svc.Generate(ctx, "user-a", req, "en", true)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls, "bypass skips the cache lookup")
}

func TestService_GenerateFailure(t *testing.T) {
	cascadeErr := &planner.ClassifiedError{
		Kind:     planner.KindTimeout,
		Message:  "context deadline exceeded",
		Model:    "claude-haiku",
		Attempts: 9,
	}
	gen := &generatorStub{err: cascadeErr}
	pub := &capturePublisher{}
	mem := store.NewMemory()
	svc := trip.New(gen, mem, trip.WithEvents(pub))
	ctx := context.Background()

	_, err := svc.Generate(ctx, "user-a", itinerary.TripRequest{Destination: "Kyoto", Duration: 2}, "en", false)
	var cerr *planner.ClassifiedError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, planner.KindTimeout, cerr.Kind)

	// Nothing was persisted.
	_, total, err := svc.History(ctx, "user-a", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	require.Len(t, pub.failed, 1)
	assert.Equal(t, "timeout", pub.failed[0].ErrorKind)
	assert.Equal(t, "claude-haiku", pub.failed[0].Model)
	assert.Equal(t, 9, pub.failed[0].Attempts)
	assert.Empty(t, pub.generated)
}

func TestService_OwnershipBoundary(t *testing.T) {
	gen := &generatorStub{gen: &planner.Generation{
		Itinerary: kyotoPlan(),
		Model:     "gemini-flash",
		Attempts:  1,
	}}
	svc := trip.New(gen, store.NewMemory())
	ctx := context.Background()

	rec, err := svc.Generate(ctx, "user-a", itinerary.TripRequest{Destination: "Kyoto", Duration: 2}, "en", false)
	require.NoError(t, err)

	_, err = svc.Get(ctx, "user-b", rec.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "user-b", rec.ID), store.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, "user-a", rec.ID))
	_, err = svc.Get(ctx, "user-a", rec.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
