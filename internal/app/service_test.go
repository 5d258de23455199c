package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/deepp5/catrack/internal/adapters/repository"
	"github.com/deepp5/catrack/internal/adapters/storage"
	service "github.com/deepp5/catrack/internal/app"
	"github.com/deepp5/catrack/internal/domain/features"
	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/internal/synth"
	"github.com/deepp5/catrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const bucket = "sounds"

type fixture struct {
	svc   *service.Service
	store *repository.MemoryStore
	files *storage.DirFetcher
	gen   *synth.Generator
	key   model.Key
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	return newFixtureContext(t, context.Background(), opts...)
}

// newFixtureContext starts the service with startCtx instead of Background.
func newFixtureContext(t *testing.T, startCtx context.Context, opts ...service.Option) *fixture {
	t.Helper()
	f := &fixture{
		store: repository.NewMemoryStore(),
		files: storage.NewDirFetcher(t.TempDir()),
		gen:   synth.NewGenerator(synth.WithDuration(500 * time.Millisecond)),
		key:   model.Key{MachineID: "cat-320", Mode: "idle"},
	}

	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	base := []service.Option{
		service.WithStore(f.store),
		service.WithFetcher(f.files),
		service.WithWorkerCount(3),
		service.WithQueueSize(4),
		service.WithClock(clock),
	}
	f.svc = service.New(append(base, opts...)...)
	if err := f.svc.Start(startCtx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	return f
}

// media writes a synthetic clip to disk and returns its reference.
func (f *fixture) media(t *testing.T, id string, label model.Label, seed int64) model.MediaRef {
	t.Helper()
	ref := model.MediaRef{ID: id, Bucket: bucket, Path: f.key.MachineID + "/" + id + ".wav", MimeType: "audio/wav"}
	data, err := synth.EncodeWAV(f.gen.Clip(label, seed), f.gen.SampleRate())
	if err != nil {
		t.Fatalf("encode %s: %v", id, err)
	}
	if err := f.files.Store(ref, data); err != nil {
		t.Fatalf("store %s: %v", id, err)
	}
	return ref
}

// sample registers a labelled catalog entry for ref under key.
func (f *fixture) sample(t *testing.T, key model.Key, ref model.MediaRef, label model.Label) {
	t.Helper()
	if _, err := f.store.AddSample(context.Background(), model.SoundSample{Media: ref, Key: key, Label: label}); err != nil {
		t.Fatalf("add sample %s: %v", ref.ID, err)
	}
}

// seed registers nGood good and nBad bad clips for the fixture key.
func (f *fixture) seed(t *testing.T, nGood, nBad int) {
	t.Helper()
	for i := 0; i < nGood; i++ {
		id := fmt.Sprintf("good-%d", i)
		f.sample(t, f.key, f.media(t, id, model.LabelGood, int64(i+1)), model.LabelGood)
	}
	for i := 0; i < nBad; i++ {
		id := fmt.Sprintf("bad-%d", i)
		f.sample(t, f.key, f.media(t, id, model.LabelBad, int64(100+i)), model.LabelBad)
	}
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service that was never started", t, func() {
		svc := service.New(service.WithFetcher(storage.NewDirFetcher(t.TempDir())))

		Convey("Operations report that it is not started", func() {
			_, err := svc.RebuildBaseline(ctx, model.Key{MachineID: "m", Mode: "idle"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

			_, err = svc.ScoreClip(ctx, "clip", model.Key{MachineID: "m", Mode: "idle"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Stats show it stopped", func() {
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a service without a fetcher", t, func() {
		svc := service.New()

		Convey("Start fails", func() {
			So(errors.Is(svc.Start(ctx), service.ErrMissingFetcher), ShouldBeTrue)
		})
	})

	Convey("Given a started service", t, func() {
		f := newFixture(t)

		Convey("Start is idempotent and Stop can be called twice", func() {
			So(f.svc.Start(ctx), ShouldBeNil)
			f.svc.Stop()
			f.svc.Stop()
			_, err := f.svc.GetBaseline(ctx, f.key)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Stats describe the engine", func() {
			stats := f.svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["fingerprintDim"], ShouldEqual, 40)
			So(stats["baselines"], ShouldEqual, 0)
			f.svc.Stop()
		})
	})

	Convey("Given a service whose start context has been cancelled", t, func() {
		startCtx, cancel := context.WithCancel(context.Background())
		f := newFixtureContext(t, startCtx)
		f.seed(t, 4, 0)
		cancel()
		Reset(f.svc.Stop)

		Convey("Rebuilds still complete on the service's own workers", func() {
			reqCtx, reqCancel := context.WithTimeout(ctx, 10*time.Second)
			defer reqCancel()

			res, err := f.svc.RebuildBaseline(reqCtx, f.key)
			So(err, ShouldBeNil)
			So(res.NumGood, ShouldEqual, 4)
			So(f.svc.GetStats()["started"], ShouldEqual, true)
		})

		Convey("Stop still releases the workers", func() {
			f.svc.Stop()
			_, err := f.svc.RebuildBaseline(ctx, f.key)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_RebuildBaseline(t *testing.T) {
	ctx := context.Background()

	Convey("Given five good clips, one of which cannot be fetched, and three bad clips", t, func() {
		f := newFixture(t)
		Reset(f.svc.Stop)

		f.seed(t, 4, 3)
		missing := model.MediaRef{ID: "good-missing", Bucket: bucket, Path: "cat-320/gone.wav"}
		f.sample(t, f.key, missing, model.LabelGood)

		res, err := f.svc.RebuildBaseline(ctx, f.key)

		Convey("The unreadable clip is skipped and the rest are used", func() {
			So(err, ShouldBeNil)
			So(res.MachineID, ShouldEqual, "cat-320")
			So(res.Mode, ShouldEqual, "idle")
			So(res.NumGood, ShouldEqual, 4)
			So(res.NumBad, ShouldEqual, 3)
			So(res.NumSkip, ShouldEqual, 1)
		})

		Convey("Good and bad separate, so the threshold sits at their midpoint", func() {
			So(res.Separated, ShouldBeTrue)
			So(res.MinBad, ShouldNotBeNil)
			So(res.MaxGood, ShouldBeGreaterThan, 0)
			So(res.MaxGood, ShouldBeLessThan, *res.MinBad)
			So(res.Threshold, ShouldAlmostEqual, (res.MaxGood+*res.MinBad)/2, 1e-9)
		})

		Convey("The baseline is stored with 2K statistics", func() {
			view, err := f.svc.GetBaseline(ctx, f.key)
			So(err, ShouldBeNil)
			So(len(view.FeatureMean), ShouldEqual, 2*features.DefaultNumCoefficients)
			So(len(view.FeatureStd), ShouldEqual, 2*features.DefaultNumCoefficients)
			So(view.Threshold, ShouldEqual, res.Threshold)
			So(view.NumGood, ShouldEqual, 4)
			So(view.UpdatedAt.IsZero(), ShouldBeFalse)
			for _, s := range view.FeatureStd {
				So(s, ShouldBeGreaterThan, 0)
			}
		})

		Convey("Rebuilding again gives the identical result", func() {
			again, err := f.svc.RebuildBaseline(ctx, f.key)
			So(err, ShouldBeNil)
			So(again.Threshold, ShouldEqual, res.Threshold)
			So(again.MaxGood, ShouldEqual, res.MaxGood)
			So(*again.MinBad, ShouldEqual, *res.MinBad)
		})

		Convey("Stats count the rebuild", func() {
			stats := f.svc.GetStats()
			So(stats["rebuilds"], ShouldEqual, int64(1))
			So(stats["baselines"], ShouldEqual, 1)
		})
	})

	Convey("Given only good clips", t, func() {
		f := newFixture(t)
		Reset(f.svc.Stop)
		f.seed(t, 3, 0)

		res, err := f.svc.RebuildBaseline(ctx, f.key)

		Convey("The margin heuristic sets the threshold", func() {
			So(err, ShouldBeNil)
			So(res.MinBad, ShouldBeNil)
			So(res.Separated, ShouldBeFalse)
			So(res.Threshold, ShouldAlmostEqual, res.MaxGood*1.15, 1e-9)
		})
	})

	Convey("Given a single good clip", t, func() {
		f := newFixture(t)
		Reset(f.svc.Stop)
		f.seed(t, 1, 2)

		_, err := f.svc.RebuildBaseline(ctx, f.key)

		Convey("The rebuild fails with insufficient data and stores nothing", func() {
			So(errors.Is(err, model.ErrInsufficientData), ShouldBeTrue)
			_, err := f.svc.GetBaseline(ctx, f.key)
			So(errors.Is(err, model.ErrBaselineNotFound), ShouldBeTrue)
			So(f.svc.GetStats()["rebuildFailures"], ShouldEqual, int64(1))
		})
	})

	Convey("Given an existing baseline and a key whose extra clips are all broken", t, func() {
		f := newFixture(t)
		Reset(f.svc.Stop)
		f.seed(t, 3, 1)
		first, err := f.svc.RebuildBaseline(ctx, f.key)
		So(err, ShouldBeNil)

		other := model.Key{MachineID: f.key.MachineID, Mode: "running"}
		f.sample(t, other, model.MediaRef{ID: "x1", Bucket: bucket, Path: "nope-1.wav"}, model.LabelGood)
		f.sample(t, other, model.MediaRef{ID: "x2", Bucket: bucket, Path: "nope-2.wav"}, model.LabelGood)

		Convey("A failed rebuild for one mode leaves the other untouched", func() {
			_, err := f.svc.RebuildBaseline(ctx, other)
			So(errors.Is(err, model.ErrInsufficientData), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "2 skipped")

			view, err := f.svc.GetBaseline(ctx, f.key)
			So(err, ShouldBeNil)
			So(view.Threshold, ShouldEqual, first.Threshold)
		})
	})

	Convey("Given two catalog entries pointing at the same media", t, func() {
		f := newFixture(t)
		Reset(f.svc.Stop)
		f.seed(t, 3, 0)
		dup := f.media(t, "good-0", model.LabelGood, 1)
		f.sample(t, f.key, dup, model.LabelGood)

		res, err := f.svc.RebuildBaseline(ctx, f.key)

		Convey("The repeat is skipped", func() {
			So(err, ShouldBeNil)
			So(res.NumGood, ShouldEqual, 3)
			So(res.NumSkip, ShouldEqual, 1)
		})
	})

	Convey("Given an empty catalog", t, func() {
		f := newFixture(t)
		Reset(f.svc.Stop)

		_, err := f.svc.RebuildBaseline(ctx, f.key)

		Convey("The rebuild reports insufficient data", func() {
			So(errors.Is(err, model.ErrInsufficientData), ShouldBeTrue)
		})
	})

	Convey("Given a key without a mode", t, func() {
		f := newFixture(t)
		Reset(f.svc.Stop)

		_, err := f.svc.RebuildBaseline(ctx, model.Key{MachineID: "cat-320"})

		Convey("The request is rejected", func() {
			So(errors.Is(err, model.ErrInvalidKey), ShouldBeTrue)
		})
	})
}

func TestService_ScoreClip(t *testing.T) {
	ctx := context.Background()

	Convey("Given no baseline for the key", t, func() {
		f := newFixture(t)
		Reset(f.svc.Stop)
		ref := f.media(t, "probe", model.LabelGood, 7)
		So(f.store.AddMedia(ctx, ref), ShouldBeNil)

		_, err := f.svc.ScoreClip(ctx, "probe", f.key)

		Convey("Scoring fails with baseline not found", func() {
			So(errors.Is(err, model.ErrBaselineNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a rebuilt baseline", t, func() {
		f := newFixture(t)
		Reset(f.svc.Stop)
		f.seed(t, 4, 2)
		built, err := f.svc.RebuildBaseline(ctx, f.key)
		So(err, ShouldBeNil)

		Convey("A training good clip is classified good", func() {
			res, err := f.svc.ScoreClip(ctx, "good-0", f.key)
			So(err, ShouldBeNil)
			So(res.PredictedLabel, ShouldEqual, "good")
			So(res.AnomalyScore, ShouldBeLessThanOrEqualTo, built.MaxGood)
			So(res.Threshold, ShouldEqual, built.Threshold)
			So(res.Bucket, ShouldEqual, bucket)
			So(res.Path, ShouldEqual, "cat-320/good-0.wav")
		})

		Convey("A training bad clip is classified bad", func() {
			res, err := f.svc.ScoreClip(ctx, "bad-1", f.key)
			So(err, ShouldBeNil)
			So(res.PredictedLabel, ShouldEqual, "bad")
			So(res.AnomalyScore, ShouldBeGreaterThanOrEqualTo, *built.MinBad)
			So(res.AnomalyScore, ShouldBeLessThanOrEqualTo, 100)
		})

		Convey("Scoring is deterministic", func() {
			a, err := f.svc.ScoreClip(ctx, "good-2", f.key)
			So(err, ShouldBeNil)
			b, err := f.svc.ScoreClip(ctx, "good-2", f.key)
			So(err, ShouldBeNil)
			So(a.AnomalyScore, ShouldEqual, b.AnomalyScore)
		})

		Convey("Every call is recorded, newest first", func() {
			_, err := f.svc.ScoreClip(ctx, "good-1", f.key)
			So(err, ShouldBeNil)
			_, err = f.svc.ScoreClip(ctx, "bad-0", f.key)
			So(err, ShouldBeNil)

			list, err := f.svc.ListAssessments(ctx, f.key, 0)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 2)
			So(list[0].MediaID, ShouldEqual, "bad-0")
			So(list[0].PredictedLabel, ShouldEqual, "bad")
			So(list[1].MediaID, ShouldEqual, "good-1")
			So(list[0].CreatedAt.After(list[1].CreatedAt), ShouldBeTrue)

			one, err := f.svc.ListAssessments(ctx, f.key, 1)
			So(err, ShouldBeNil)
			So(len(one), ShouldEqual, 1)

			_, err = f.svc.ListAssessments(ctx, f.key, -1)
			So(errors.Is(err, service.ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("An unknown media ID is a retrieval error", func() {
			_, err := f.svc.ScoreClip(ctx, "nope", f.key)
			So(errors.Is(err, model.ErrRetrieval), ShouldBeTrue)
		})

		Convey("An empty media ID is rejected", func() {
			_, err := f.svc.ScoreClip(ctx, "", f.key)
			So(errors.Is(err, service.ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("A clip that is not audio is a decode error", func() {
			ref := model.MediaRef{ID: "junk", Bucket: bucket, Path: "junk.bin"}
			So(f.files.Store(ref, []byte("definitely not audio")), ShouldBeNil)
			So(f.store.AddMedia(ctx, ref), ShouldBeNil)

			_, err := f.svc.ScoreClip(ctx, "junk", f.key)
			So(errors.Is(err, model.ErrDecode), ShouldBeTrue)
		})

		Convey("A service with a different coefficient count sees a dimension mismatch", func() {
			ex, err := features.NewExtractor(features.WithNumCoefficients(13))
			So(err, ShouldBeNil)
			other := service.New(
				service.WithStore(f.store),
				service.WithFetcher(f.files),
				service.WithExtractor(ex),
				service.WithWorkerCount(1),
			)
			So(other.Start(ctx), ShouldBeNil)
			defer other.Stop()

			_, err = other.ScoreClip(ctx, "good-0", f.key)
			So(errors.Is(err, model.ErrDimensionMismatch), ShouldBeTrue)
		})
	})
}
