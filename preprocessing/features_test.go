package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ceschini/lichess-win-prediction/dataset"
)

func sampleRecords() []dataset.GameRecord {
	return []dataset.GameRecord{
		{Winner: "white", VictoryStatus: "mate", Rated: true, Turns: 30, WhiteRating: 1500, BlackRating: 1400, OpeningEco: "C20", OpeningPly: 3},
		{Winner: "black", VictoryStatus: "resign", Rated: true, Turns: 50, WhiteRating: 1300, BlackRating: 1450, OpeningEco: "B00", OpeningPly: 4},
		{Winner: "white", VictoryStatus: "outoftime", Rated: false, Turns: 70, WhiteRating: 1600, BlackRating: 1600, OpeningEco: "D10", OpeningPly: 5},
		{Winner: "black", VictoryStatus: "mate", Rated: true, Turns: 90, WhiteRating: 1200, BlackRating: 1350, OpeningEco: "C20", OpeningPly: 6},
	}
}

func TestFeatureBuilder_FitTransform(t *testing.T) {
	fb := NewFeatureBuilder(dataset.DefaultSchema(), DefaultOptions())
	X, y, err := fb.FitTransform(sampleRecords())
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	r, c := X.Dims()
	if r != 4 {
		t.Errorf("rows = %d, want 4", r)
	}
	if c != len(fb.FeatureNames()) {
		t.Errorf("cols = %d, want %d", c, len(fb.FeatureNames()))
	}
	if y.Len() != 4 {
		t.Errorf("labels = %d, want 4", y.Len())
	}

	// rating_diff is the first configured feature.
	if fb.FeatureNames()[0] != "rating_diff" {
		t.Fatalf("first feature = %q, want rating_diff", fb.FeatureNames()[0])
	}
	if X.At(0, 0) != 100 {
		t.Errorf("rating_diff[0] = %v, want 100", X.At(0, 0))
	}

	// Binary labels: black=0, white=1 by sorted order.
	labels := fb.Labels()
	if len(labels) != 2 || labels[0] != "black" || labels[1] != "white" {
		t.Errorf("Labels() = %v, want [black white]", labels)
	}
	if y.AtVec(0) != 1 || y.AtVec(1) != 0 {
		t.Errorf("labels = %v/%v, want 1/0", y.AtVec(0), y.AtVec(1))
	}
}

func TestFeatureBuilder_Deterministic(t *testing.T) {
	records := sampleRecords()

	fb1 := NewFeatureBuilder(dataset.DefaultSchema(), DefaultOptions())
	X1, y1, err := fb1.FitTransform(records)
	if err != nil {
		t.Fatal(err)
	}

	fb2 := NewFeatureBuilder(dataset.DefaultSchema(), DefaultOptions())
	X2, y2, err := fb2.FitTransform(records)
	if err != nil {
		t.Fatal(err)
	}

	if !mat.EqualApprox(X1, X2, 0) {
		t.Error("feature matrices differ across identical runs")
	}
	if !mat.EqualApprox(y1, y2, 0) {
		t.Error("label vectors differ across identical runs")
	}
}

func TestFeatureBuilder_DropsMissingRow(t *testing.T) {
	records := sampleRecords()

	fb := NewFeatureBuilder(dataset.DefaultSchema(), DefaultOptions())
	Xfull, _, err := fb.FitTransform(records)
	if err != nil {
		t.Fatal(err)
	}
	fullRows, _ := Xfull.Dims()

	// Add one record with a missing required field.
	bad := records[0]
	bad.WhiteRating = math.NaN()
	withBad := append(append([]dataset.GameRecord{}, records...), bad)

	fb2 := NewFeatureBuilder(dataset.DefaultSchema(), DefaultOptions())
	Xdropped, _, err := fb2.FitTransform(withBad)
	if err != nil {
		t.Fatal(err)
	}
	droppedRows, _ := Xdropped.Dims()

	if droppedRows != fullRows {
		t.Errorf("rows after drop = %d, want %d", droppedRows, fullRows)
	}
	if fb2.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", fb2.Dropped)
	}

	// Other rows' encoded values are unchanged by the drop.
	if !mat.EqualApprox(Xfull, Xdropped, 0) {
		t.Error("dropping a bad row altered surviving rows' encodings")
	}
}

func TestFeatureBuilder_DropsDraws(t *testing.T) {
	records := append(sampleRecords(), dataset.GameRecord{
		Winner: "draw", VictoryStatus: "draw", Rated: true, Turns: 100,
		WhiteRating: 1500, BlackRating: 1500, OpeningEco: "A00", OpeningPly: 2,
	})

	fb := NewFeatureBuilder(dataset.DefaultSchema(), DefaultOptions())
	X, _, err := fb.FitTransform(records)
	if err != nil {
		t.Fatal(err)
	}
	r, _ := X.Dims()
	if r != 4 {
		t.Errorf("rows = %d, want 4 (draw dropped)", r)
	}
	if len(fb.Labels()) != 2 {
		t.Errorf("labels = %v, want binary", fb.Labels())
	}
}

func TestFeatureBuilder_KeepDraws(t *testing.T) {
	opts := DefaultOptions()
	opts.DropDraws = false

	records := append(sampleRecords(), dataset.GameRecord{
		Winner: "draw", VictoryStatus: "draw", Rated: true, Turns: 100,
		WhiteRating: 1500, BlackRating: 1500, OpeningEco: "A00", OpeningPly: 2,
	})

	fb := NewFeatureBuilder(dataset.DefaultSchema(), opts)
	X, _, err := fb.FitTransform(records)
	if err != nil {
		t.Fatal(err)
	}
	r, _ := X.Dims()
	if r != 5 {
		t.Errorf("rows = %d, want 5", r)
	}
	if len(fb.Labels()) != 3 {
		t.Errorf("labels = %v, want 3 classes", fb.Labels())
	}
}

func TestFeatureBuilder_TransformRejectsMissing(t *testing.T) {
	fb := NewFeatureBuilder(dataset.DefaultSchema(), DefaultOptions())
	if _, _, err := fb.FitTransform(sampleRecords()); err != nil {
		t.Fatal(err)
	}

	bad := sampleRecords()[0]
	bad.BlackRating = math.NaN()
	if _, err := fb.Transform([]dataset.GameRecord{bad}); err == nil {
		t.Error("expected error transforming a record with missing required fields")
	}
}

func TestFeatureBuilder_AllOptionalFeatures(t *testing.T) {
	opts := Options{
		DropDraws:     true,
		RatingDiff:    true,
		Turns:         true,
		Rated:         true,
		VictoryStatus: true,
		OpeningEco:    true,
		OpeningPly:    true,
	}
	fb := NewFeatureBuilder(dataset.DefaultSchema(), opts)
	X, _, err := fb.FitTransform(sampleRecords())
	if err != nil {
		t.Fatal(err)
	}
	_, c := X.Dims()
	if c != 7 {
		t.Errorf("cols = %d, want 7", c)
	}
}
