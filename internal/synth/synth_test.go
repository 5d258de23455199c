package synth_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/deepp5/catrack/internal/domain/model"
	synth "github.com/deepp5/catrack/internal/synth"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerator(t *testing.T) {
	Convey("Given a generator for half-second clips", t, func() {
		g := synth.NewGenerator(synth.WithDuration(500*time.Millisecond), synth.WithSampleRate(8000))

		Convey("When a clip is rendered twice with one seed", func() {
			a := g.Clip(model.LabelGood, 7)
			b := g.Clip(model.LabelGood, 7)

			Convey("Then the samples should match and fit the duration", func() {
				So(len(a), ShouldEqual, 4000)
				So(a, ShouldResemble, b)
			})
		})

		Convey("When seeds differ", func() {
			a := g.Clip(model.LabelGood, 1)
			b := g.Clip(model.LabelGood, 2)

			Convey("Then the clips should differ", func() {
				So(a, ShouldNotResemble, b)
			})
		})

		Convey("When a bad clip is rendered", func() {
			clip := g.Clip(model.LabelBad, 1)

			Convey("Then every sample should stay in range", func() {
				for _, s := range clip {
					So(s >= -1 && s <= 1, ShouldBeTrue)
				}
			})
		})
	})
}

func TestEncodeWAV(t *testing.T) {
	Convey("Given mono samples", t, func() {
		pcm := []float64{0, 0.5, -0.5, 1, -1}

		Convey("When encoded", func() {
			data, err := synth.EncodeWAV(pcm, 16000)

			Convey("Then a RIFF/WAVE file with 16-bit payload should be produced", func() {
				So(err, ShouldBeNil)
				So(bytes.HasPrefix(data, []byte("RIFF")), ShouldBeTrue)
				So(string(data[8:12]), ShouldEqual, "WAVE")
				So(len(data), ShouldEqual, 44+2*len(pcm))
			})
		})

		Convey("When the format is invalid", func() {
			_, err := synth.EncodeWAVChannels(pcm, 0, 1)

			Convey("Then encoding should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
