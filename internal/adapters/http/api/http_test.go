package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deepp5/catrack/internal/adapters/http/api"
	"github.com/deepp5/catrack/internal/adapters/mq/queue"
	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	err       error
	lastKey   model.Key
	lastMedia string
	lastLimit int
}

func (m *mockDependencies) RebuildBaseline(_ context.Context, key model.Key) (types.RebuildResult, error) {
	m.lastKey = key
	if m.err != nil {
		return types.RebuildResult{}, m.err
	}
	return types.RebuildResult{MachineID: key.MachineID, Mode: key.Mode, NumGood: 4, NumBad: 0, MaxGood: 10, Threshold: 11.5}, nil
}

func (m *mockDependencies) ScoreClip(_ context.Context, mediaID string, key model.Key) (types.CheckResult, error) {
	m.lastKey, m.lastMedia = key, mediaID
	if m.err != nil {
		return types.CheckResult{}, m.err
	}
	return types.CheckResult{MediaID: mediaID, Bucket: "sounds", Path: "a.wav", AnomalyScore: 42, Threshold: 30, PredictedLabel: "bad"}, nil
}

func (m *mockDependencies) GetBaseline(_ context.Context, key model.Key) (types.BaselineView, error) {
	m.lastKey = key
	if m.err != nil {
		return types.BaselineView{}, m.err
	}
	return types.BaselineView{MachineID: key.MachineID, Mode: key.Mode, FeatureMean: []float64{1, 2}, FeatureStd: []float64{1, 1}, Threshold: 5}, nil
}

func (m *mockDependencies) ListAssessments(_ context.Context, key model.Key, limit int) ([]types.AssessmentView, error) {
	m.lastKey, m.lastLimit = key, limit
	if m.err != nil {
		return nil, m.err
	}
	return []types.AssessmentView{{ID: "a1", MediaID: "m1", MachineID: key.MachineID, Mode: key.Mode, PredictedLabel: "good"}}, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies, opts ...api.Option) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, opts...)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("The root path reports the backend is running", func() {
			w := do(mux, http.MethodGet, "/", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "CATrack backend running")
		})

		Convey("Ping answers", func() {
			w := do(mux, http.MethodGet, "/ping", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "Backend connected successfully")
		})

		Convey("Unknown paths are 404", func() {
			w := do(mux, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Health serves metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Stats returns the provider's map", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
			So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
		})

		Convey("Stats rejects writes", func() {
			w := do(mux, http.MethodPost, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSoundHandler_Rebuild(t *testing.T) {
	Convey("Given the rebuild endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("Query parameters select the key", func() {
			w := do(mux, http.MethodPost, "/sound/baseline/rebuild?machine_id=cat-320&mode=running", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastKey, ShouldResemble, model.Key{MachineID: "cat-320", Mode: "running"})

			var res map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
			So(res["n_good"], ShouldEqual, 4.0)
			So(res["max_good"], ShouldEqual, 10.0)
			So(res["threshold"], ShouldEqual, 11.5)
			So(res["min_bad"], ShouldBeNil)
		})

		Convey("Mode falls back to the default", func() {
			w := do(mux, http.MethodPost, "/sound/baseline/rebuild?machine_id=cat-320", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastKey.Mode, ShouldEqual, "idle")
		})

		Convey("A configured default mode is honoured", func() {
			mux := newMux(deps, api.WithDefaultMode("running"))
			w := do(mux, http.MethodPost, "/sound/baseline/rebuild?machine_id=cat-320", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastKey.Mode, ShouldEqual, "running")
		})

		Convey("A JSON body supplies missing parameters", func() {
			w := do(mux, http.MethodPost, "/sound/baseline/rebuild", `{"machine_id":"d6","mode":"load"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastKey, ShouldResemble, model.Key{MachineID: "d6", Mode: "load"})
		})

		Convey("A malformed JSON body is a bad request", func() {
			w := do(mux, http.MethodPost, "/sound/baseline/rebuild", `{"machine_id":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A missing machine_id is a bad request", func() {
			w := do(mux, http.MethodPost, "/sound/baseline/rebuild", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("GET is not allowed", func() {
			w := do(mux, http.MethodGet, "/sound/baseline/rebuild?machine_id=x", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Insufficient data maps to 400", func() {
			deps.err = fmt.Errorf("rebuild: %w", model.ErrInsufficientData)
			w := do(mux, http.MethodPost, "/sound/baseline/rebuild?machine_id=x", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "insufficient_data")
		})
	})
}

func TestSoundHandler_Check(t *testing.T) {
	Convey("Given the check endpoint", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("A scored clip returns its label", func() {
			w := do(mux, http.MethodPost, "/sound/check?media_id=m-1&machine_id=cat-320&mode=idle", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastMedia, ShouldEqual, "m-1")

			var res types.CheckResult
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
			So(res.PredictedLabel, ShouldEqual, "bad")
			So(res.AnomalyScore, ShouldEqual, 42.0)
		})

		Convey("A missing media_id is a bad request", func() {
			w := do(mux, http.MethodPost, "/sound/check?machine_id=cat-320", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Engine errors map to their statuses", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{model.ErrBaselineNotFound, http.StatusNotFound, "baseline_not_found"},
				{model.ErrDecode, http.StatusUnprocessableEntity, "decode_error"},
				{model.ErrRetrieval, http.StatusBadGateway, "retrieval_error"},
				{model.ErrDimensionMismatch, http.StatusConflict, "dimension_mismatch"},
				{model.ErrInvalidKey, http.StatusBadRequest, "bad_request"},
				{queue.ErrFull, http.StatusTooManyRequests, "backpressure"},
				{queue.ErrClosed, http.StatusServiceUnavailable, "unavailable"},
				{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
			}
			for _, c := range cases {
				deps.err = fmt.Errorf("wrapped: %w", c.err)
				w := do(mux, http.MethodPost, "/sound/check?media_id=m&machine_id=x", "")
				So(w.Code, ShouldEqual, c.status)
				So(decodeError(w)["code"], ShouldEqual, c.code)
			}
		})
	})
}

func TestSoundHandler_Queries(t *testing.T) {
	Convey("Given the read endpoints", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps, api.WithMaxLimit(50))

		Convey("The baseline is returned", func() {
			w := do(mux, http.MethodGet, "/sound/baseline?machine_id=cat-320", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"feature_mean":[1,2]`)
		})

		Convey("A missing baseline is 404", func() {
			deps.err = model.ErrBaselineNotFound
			w := do(mux, http.MethodGet, "/sound/baseline?machine_id=cat-320", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Assessments default to the maximum limit", func() {
			w := do(mux, http.MethodGet, "/sound/assessments?machine_id=cat-320", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 50)
		})

		Convey("An oversized limit is capped", func() {
			w := do(mux, http.MethodGet, "/sound/assessments?machine_id=cat-320&limit=500", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 50)
		})

		Convey("A non-numeric limit is rejected", func() {
			w := do(mux, http.MethodGet, "/sound/assessments?machine_id=cat-320&limit=ten", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given API error helpers", t, func() {
		cause := errors.New("missing field")

		Convey("WrapKind keeps both kind and cause", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: missing field")
		})

		Convey("NewKind carries only the kind", func() {
			err := api.NewKind("api.op", api.ErrMethod)
			So(errors.Is(err, api.ErrMethod), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: method not allowed")
		})

		Convey("Wrap of nil is nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})
	})
}
