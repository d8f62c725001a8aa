package timeline

import (
	"encoding/json"
	"testing"
)

func TestAddEditDelete(t *testing.T) {
	tl := New()
	if tl.Add("  ", "") {
		t.Fatal("Add(blank, blank) = true")
	}
	tl.Add("田中", "こんにちは")
	tl.Add("佐藤", "よろしく")

	if !tl.Edit(1, "佐藤", "よろしくお願いします") {
		t.Fatal("Edit(1) = false")
	}
	if tl.Edit(5, "x", "y") {
		t.Fatal("Edit(5) = true")
	}
	if !tl.Delete(0) || tl.Delete(3) {
		t.Fatal("Delete results wrong")
	}
	u := tl.Utterances()
	if len(u) != 1 || u[0].Text != "よろしくお願いします" {
		t.Fatalf("utterances = %+v", u)
	}
}

func TestExportJSON(t *testing.T) {
	tl := New()
	data, _ := tl.ExportJSON()
	if string(data) != "{\n  \"utterances\": []\n}" {
		t.Fatalf("empty export = %s", data)
	}

	tl.Add("田中", "こんにちは")
	data, err := tl.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	want := "{\n  \"utterances\": [\n    {\n      \"name\": \"田中\",\n      \"text\": \"こんにちは\"\n    }\n  ]\n}"
	if string(data) != want {
		t.Fatalf("export =\n%s\nwant\n%s", data, want)
	}
}

func TestReplaceStripsSelfIntro(t *testing.T) {
	tl := New()
	var doc Document
	json.Unmarshal([]byte(`{"utterances":[{"name":"田中","text":"田中です。今日の議題です"},{"name":"佐藤","text":"はい"}]}`), &doc)
	tl.Replace(doc)

	u := tl.Utterances()
	if len(u) != 2 || u[0].Text != "今日の議題です" || u[1].Text != "はい" {
		t.Fatalf("utterances = %+v", u)
	}
	if tl.ColorIndex("田中") != 0 || tl.ColorIndex("佐藤") != 1 {
		t.Fatal("colors not assigned in first-seen order")
	}
}

func TestColorIndexWraps(t *testing.T) {
	tl := New()
	for i := 0; i < PaletteSize; i++ {
		tl.ColorIndex(string(rune('A' + i)))
	}
	if got := tl.ColorIndex("extra"); got != 0 {
		t.Fatalf("ColorIndex after palette = %d, want 0", got)
	}
	if got := tl.ColorIndex("B"); got != 1 {
		t.Fatalf("ColorIndex(B) = %d, want stable 1", got)
	}
}

func TestNameHelpers(t *testing.T) {
	cases := []struct{ in, want string }{
		{"田中です。こんにちは", "田中"},
		{"ヤマダです よろしく", "ヤマダ"},
		{"こんにちは", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := ExtractName(c.in); got != c.want {
			t.Errorf("ExtractName(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	if got := NormalizeName(" 鈴木です。 "); got != "鈴木" {
		t.Errorf("NormalizeName = %q", got)
	}
	if got := NormalizeName("佐藤さん。"); got != "佐藤さん" {
		t.Errorf("NormalizeName keeps honorifics, got %q", got)
	}
	if got := StripSelfIntro("鈴木", "鈴木 です。本題"); got != "本題" {
		t.Errorf("StripSelfIntro = %q", got)
	}
	if got := StripSelfIntro("", "鈴木です。本題"); got != "鈴木です。本題" {
		t.Errorf("StripSelfIntro without name = %q", got)
	}
}

func TestRecorderPhases(t *testing.T) {
	tl := New()
	r := NewRecorder(tl)

	if msg := r.Toggle(); msg != "話者名を話してください" || r.Phase() != PhaseName {
		t.Fatalf("start name: %q %s", msg, r.Phase())
	}
	r.Write("高橋です。")
	if msg := r.Toggle(); msg != "話者「高橋」を記録しました" || r.Phase() != PhaseAwaitText {
		t.Fatalf("stop name: %q %s", msg, r.Phase())
	}

	r.Toggle()
	if r.Phase() != PhaseText {
		t.Fatalf("phase = %s, want text", r.Phase())
	}
	r.Write("議事録を始めます")
	r.Toggle()
	if r.Phase() != PhaseIdle {
		t.Fatalf("phase = %s, want idle", r.Phase())
	}

	u := tl.Utterances()
	if len(u) != 1 || u[0].Name != "高橋" || u[0].Text != "議事録を始めます" {
		t.Fatalf("utterances = %+v", u)
	}
}

func TestRecorderGuessesNameFromText(t *testing.T) {
	tl := New()
	r := NewRecorder(tl)
	r.Toggle()
	r.Toggle() // nothing said for the name
	r.Toggle()
	r.Write("伊藤です。資料を共有します")
	r.Toggle()

	u := tl.Utterances()
	if len(u) != 1 || u[0].Name != "伊藤" || u[0].Text != "資料を共有します" {
		t.Fatalf("utterances = %+v", u)
	}
}
