package model_test

import (
	"errors"
	"fmt"
	"testing"

	model "github.com/deepp5/catrack/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseLabel(t *testing.T) {
	convey.Convey("Given label strings", t, func() {
		convey.Convey("When they are known", func() {
			good, err := model.ParseLabel(" Good ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(good, convey.ShouldEqual, model.LabelGood)

			bad, err := model.ParseLabel("BAD")
			convey.So(err, convey.ShouldBeNil)
			convey.So(bad, convey.ShouldEqual, model.LabelBad)
		})

		convey.Convey("When they are unknown", func() {
			_, err := model.ParseLabel("meh")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestMediaRefFormatHint(t *testing.T) {
	convey.Convey("Given media references", t, func() {
		convey.So(model.MediaRef{Path: "clips/a.WAV"}.FormatHint(), convey.ShouldEqual, "wav")
		convey.So(model.MediaRef{Path: "clips/a.m4a", MimeType: "audio/wav"}.FormatHint(), convey.ShouldEqual, "m4a")
		convey.So(model.MediaRef{Path: "clips/a", MimeType: "audio/x-wav"}.FormatHint(), convey.ShouldEqual, "wav")
		convey.So(model.MediaRef{Path: "clips/a", MimeType: "audio/mpeg; charset=binary"}.FormatHint(), convey.ShouldEqual, "mp3")
		convey.So(model.MediaRef{Path: "clips/a"}.FormatHint(), convey.ShouldEqual, "")
	})
}

func TestBaselineValidate(t *testing.T) {
	convey.Convey("Given a baseline", t, func() {
		b := model.Baseline{
			Key:         model.Key{MachineID: "cat-320", Mode: "idle"},
			FeatureMean: []float64{1, 2},
			FeatureStd:  []float64{0.5, 0.5},
			Threshold:   10,
		}

		convey.Convey("When it is well formed", func() {
			convey.So(b.Validate(), convey.ShouldBeNil)
			convey.So(b.Dim(), convey.ShouldEqual, 2)
		})

		convey.Convey("When a std component is zero", func() {
			b.FeatureStd = []float64{0.5, 0}
			convey.So(b.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When the vectors disagree in length", func() {
			b.FeatureStd = []float64{0.5}
			convey.So(errors.Is(b.Validate(), model.ErrDimensionMismatch), convey.ShouldBeTrue)
		})

		convey.Convey("When the threshold is negative", func() {
			b.Threshold = -1
			convey.So(b.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When the key is incomplete", func() {
			b.Key.Mode = ""
			convey.So(b.Validate(), convey.ShouldNotBeNil)
		})
	})
}

func TestSampleOutcome(t *testing.T) {
	convey.Convey("Given sample outcomes", t, func() {
		good := model.SoundSample{ID: "g", Label: model.LabelGood}
		bad := model.SoundSample{ID: "b", Label: model.LabelBad}

		outcomes := []model.SampleOutcome{
			{Index: 0, Sample: good, Fingerprint: model.Fingerprint{1}},
			{Index: 1, Sample: good, Err: fmt.Errorf("fetch: %w", model.ErrRetrieval)},
			{Index: 2, Sample: bad, Fingerprint: model.Fingerprint{9}},
			{Index: 3, Sample: good, Err: fmt.Errorf("wav: %w", model.ErrDecode)},
			{Index: 4, Sample: good, Err: fmt.Errorf("pcm: %w", model.ErrInsufficientData)},
			{Index: 5, Sample: good, Err: model.ErrDuplicateMedia},
			{Index: 6, Sample: good, Err: errors.New("boom")},
			{Index: 7, Sample: good, Fingerprint: model.Fingerprint{2}},
		}

		convey.Convey("When classifying skip reasons", func() {
			convey.So(outcomes[0].SkipReason(), convey.ShouldEqual, "")
			convey.So(outcomes[1].SkipReason(), convey.ShouldEqual, model.SkipFetch)
			convey.So(outcomes[3].SkipReason(), convey.ShouldEqual, model.SkipDecode)
			convey.So(outcomes[4].SkipReason(), convey.ShouldEqual, model.SkipTooShort)
			convey.So(outcomes[5].SkipReason(), convey.ShouldEqual, model.SkipDuplicate)
			convey.So(outcomes[6].SkipReason(), convey.ShouldEqual, model.SkipExtract)
		})

		convey.Convey("When partitioning", func() {
			goodFps, badFps, skipped := model.Partition(outcomes)
			convey.So(goodFps, convey.ShouldResemble, []model.Fingerprint{{1}, {2}})
			convey.So(badFps, convey.ShouldResemble, []model.Fingerprint{{9}})
			convey.So(len(skipped), convey.ShouldEqual, 5)
		})
	})
}
