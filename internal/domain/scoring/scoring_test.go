package scoring_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/deepp5/catrack/internal/domain/model"
	scoring "github.com/deepp5/catrack/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestZScoreScorer_Score(t *testing.T) {
	Convey("Given a scorer with default options", t, func() {
		s := scoring.NewZScoreScorer()
		mean := []float64{0, 0, 0, 0}
		std := []float64{1, 1, 1, 1}

		Convey("When the fingerprint equals the mean", func() {
			score, err := s.Score([]float64{0, 0, 0, 0}, mean, std)

			Convey("Then the score should be zero", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 0)
			})
		})

		Convey("When every dimension is one std away", func() {
			score, err := s.Score([]float64{1, -1, 1, -1}, mean, std)

			Convey("Then the score should equal the scale", func() {
				So(err, ShouldBeNil)
				So(score, ShouldAlmostEqual, 20.0)
			})
		})

		Convey("When deviations are mixed", func() {
			score, err := s.Score([]float64{0.5, 0, 1.5, 0}, mean, std)

			Convey("Then the mean absolute z-score should be scaled", func() {
				So(err, ShouldBeNil)
				So(score, ShouldAlmostEqual, 10.0)
			})
		})

		Convey("When the fingerprint is far from the mean", func() {
			score, err := s.Score([]float64{50, 50, 50, 50}, mean, std)

			Convey("Then the score should be clamped to 100", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 100)
			})
		})

		Convey("When dimensions disagree", func() {
			_, err := s.Score([]float64{1, 2}, mean, std)

			Convey("Then a dimension mismatch should be reported", func() {
				So(errors.Is(err, model.ErrDimensionMismatch), ShouldBeTrue)
			})
		})

		Convey("When the fingerprint is empty", func() {
			_, err := s.Score(nil, nil, nil)

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, model.ErrDimensionMismatch), ShouldBeTrue)
			})
		})
	})

	Convey("Given a scorer with custom scale and cap", t, func() {
		s := scoring.NewZScoreScorer(scoring.WithScale(10), scoring.WithMaxScore(15), scoring.WithScale(-1))

		Convey("When scoring a two-sigma deviation", func() {
			score, err := s.Score([]float64{2}, []float64{0}, []float64{1})

			Convey("Then the custom cap should apply", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, 15)
			})
		})
	})
}

func TestZScoreScorer_ScoreRange(t *testing.T) {
	Convey("Given random fingerprints with extreme means and tiny stds", t, func() {
		s := scoring.NewZScoreScorer()
		rng := rand.New(rand.NewSource(42)) //nolint:gosec // reproducible inputs
		magnitudes := []float64{1e-9, 1, 1e6, 1e150, 1e300}
		stds := []float64{1e-300, 1e-12, 1e-6, 1, 1e9}

		Convey("Then every score should stay within [0, 100]", func() {
			outOfRange := 0
			for i := 0; i < 20000; i++ {
				dim := 1 + rng.Intn(64)
				fp := make([]float64, dim)
				mean := make([]float64, dim)
				std := make([]float64, dim)
				for d := 0; d < dim; d++ {
					fp[d] = (rng.Float64()*2 - 1) * magnitudes[rng.Intn(len(magnitudes))]
					mean[d] = (rng.Float64()*2 - 1) * magnitudes[rng.Intn(len(magnitudes))]
					std[d] = stds[rng.Intn(len(stds))] * (0.5 + rng.Float64())
				}
				score, err := s.Score(fp, mean, std)
				if err != nil || math.IsNaN(score) || score < 0 || score > 100 {
					outOfRange++
				}
			}
			So(outOfRange, ShouldEqual, 0)
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given a threshold of 30", t, func() {
		Convey("Then a lower score should be good", func() {
			So(scoring.Classify(29.999, 30), ShouldEqual, model.LabelGood)
		})
		Convey("Then a score at the threshold should be bad", func() {
			So(scoring.Classify(30, 30), ShouldEqual, model.LabelBad)
		})
		Convey("Then a higher score should be bad", func() {
			So(scoring.Classify(31, 30), ShouldEqual, model.LabelBad)
		})
	})
}
