package ner

import "testing"

func TestGuessKnowledgeCategory(t *testing.T) {
	cases := []struct {
		title, content, want string
	}{
		{"Fixing a Docker bug", "ran git pull then rebuilt the image", "تقنية"},
		{"وصفة كبسة دجاج", "", "طبخ"},
		{"Dentist appointment", "tooth pain, need a doctor", "صحة"},
		{"Oil change reminder", "", "سيارة"},
		{"Investing in stocks", "", "مالية"},
		{"سورة قصيرة للحفظ", "حديث نبوي شريف", "دين"},
		{"Flight to Istanbul", "need a visa", "سفر"},
		{"Team meeting notes", "", "عمل"},
		{"Fixing the kitchen sink", "plumbing issue", "منزل"},
		{"Random thought about the weather", "", "عام"},
	}
	for _, c := range cases {
		if got := GuessKnowledgeCategory(c.title, c.content); got != c.want {
			t.Errorf("GuessKnowledgeCategory(%q, %q) = %q, want %q", c.title, c.content, got, c.want)
		}
	}
}

func TestGuessExpenseCategory(t *testing.T) {
	cases := []struct {
		vendor, items, want string
	}{
		{"Starbucks", "Latte", "food"},
		{"Panda", "groceries", "groceries"},
		{"Shell Gas Station", "", "transport"},
		{"Careem", "ride", "transport"},
		{"Al Dawaa Pharmacy", "", "health"},
		{"Amazon.sa", "headphones", "shopping"},
		{"STC", "monthly plan", "telecom"},
		{"Landlord", "rent", "utilities"},
		{"Jarir Bookstore", "university textbook", "education"},
		{"Unknown Shop", "", "general"},
	}
	for _, c := range cases {
		if got := GuessExpenseCategory(c.vendor, c.items); got != c.want {
			t.Errorf("GuessExpenseCategory(%q, %q) = %q, want %q", c.vendor, c.items, got, c.want)
		}
	}
}

func TestFormatHints(t *testing.T) {
	hints := []Hint{
		{Group: "Person", Word: "Ahmed", Score: 0.9},
		{Group: "Location", Word: "Riyadh", Score: 0.8},
		{Group: "Person", Word: "Sara", Score: 0.95},
	}
	got := FormatHints(hints)
	want := "Person: Ahmed, Sara; Location: Riyadh"
	if got != want {
		t.Errorf("FormatHints() = %q, want %q", got, want)
	}
}

func TestFormatHints_Empty(t *testing.T) {
	if got := FormatHints(nil); got != "" {
		t.Errorf("FormatHints(nil) = %q, want empty", got)
	}
}
