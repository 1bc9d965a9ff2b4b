package analytics

import (
	"reflect"
	"testing"

	"github.com/avlasov/spendlens/internal/dataset"
)

func TestDetectSpendShifts(t *testing.T) {
	flags, analyzed := DetectSpendShifts(quarterFixture(), DefaultShiftThresholdPct)

	if !analyzed {
		t.Fatal("trend analysis should run with 3 months of data")
	}
	want := []ShiftFlag{
		{Service: "BigQuery", Kind: FlagSuddenIncrease, PctIncrease: 28.57},
		{Service: "Compute", Kind: FlagSuddenIncrease, PctIncrease: 100.0},
	}
	if !reflect.DeepEqual(flags, want) {
		t.Errorf("flags = %+v, want %+v", flags, want)
	}
}

func TestDetectSpendShiftsThresholdIsStrict(t *testing.T) {
	// 100 → 150 is exactly +50%.
	table := spendTable(
		rec("2025-01", "Compute", 100),
		rec("2025-02", "Compute", 150),
	)

	if flags, _ := DetectSpendShifts(table, 50); len(flags) != 0 {
		t.Errorf("flags = %+v, want none at exact threshold", flags)
	}
	flags, _ := DetectSpendShifts(table, 49.99)
	if len(flags) != 1 || flags[0].PctIncrease != 50.0 {
		t.Errorf("flags = %+v, want one +50.0 flag just under threshold", flags)
	}
}

func TestDetectSpendShiftsZeroPrevApproximation(t *testing.T) {
	// Appearing from nothing: prev 0 is replaced by 1.
	table := spendTable(
		rec("2025-01", "Compute", 100),
		rec("2025-02", "Compute", 100),
		rec("2025-02", "GPU", 50),
	)

	flags, _ := DetectSpendShifts(table, DefaultShiftThresholdPct)
	if len(flags) != 1 {
		t.Fatalf("flags = %+v, want exactly one", flags)
	}
	if flags[0].Service != "GPU" || flags[0].PctIncrease != 4900.0 {
		t.Errorf("flag = %+v, want GPU at +4900.0", flags[0])
	}
}

func TestDetectSpendShiftsZeroTotal(t *testing.T) {
	table := spendTable(
		rec("2025-01", "Compute", 100),
		rec("2025-02", "Compute", 110),
		rec("2025-01", "Legacy", 0),
		rec("2025-02", "Legacy", 0),
	)

	flags, analyzed := DetectSpendShifts(table, DefaultShiftThresholdPct)
	if !analyzed {
		t.Fatal("trend analysis should run")
	}
	want := []ShiftFlag{{Service: "Legacy", Kind: FlagZeroTotal}}
	if !reflect.DeepEqual(flags, want) {
		t.Errorf("flags = %+v, want only the zero-total flag %+v", flags, want)
	}
}

func TestDetectSpendShiftsSingleMonth(t *testing.T) {
	table := spendTable(
		rec("2025-01", "Compute", 100),
		rec("2025-01", "Legacy", 0),
	)

	flags, analyzed := DetectSpendShifts(table, DefaultShiftThresholdPct)
	if analyzed {
		t.Error("trend analysis ran with a single month")
	}
	// Zero-total flags do not need two months.
	want := []ShiftFlag{{Service: "Legacy", Kind: FlagZeroTotal}}
	if !reflect.DeepEqual(flags, want) {
		t.Errorf("flags = %+v, want %+v", flags, want)
	}
}

func TestDetectSpendShiftsEmptyTable(t *testing.T) {
	flags, analyzed := DetectSpendShifts(&dataset.Table{}, DefaultShiftThresholdPct)
	if analyzed || len(flags) != 0 {
		t.Errorf("got flags=%v analyzed=%v, want none/false", flags, analyzed)
	}
}
