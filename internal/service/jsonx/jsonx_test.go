package jsonx

import (
	"errors"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    sample
		wantErr bool
	}{
		{name: "有效对象", input: `{"name":"a","count":1}`, want: sample{"a", 1}},
		{name: "代码块", input: "```json\n{\"name\":\"b\",\"count\":2}\n```", want: sample{"b", 2}},
		{name: "前后说明文字", input: "Here you go:\n{\"name\":\"c\",\"count\":3}\nHope it helps", want: sample{"c", 3}},
		{name: "缺少右括号", input: `{"name":"d","count":4`, want: sample{"d", 4}},
		{name: "尾随逗号", input: `{"name":"e","count":5,}`, want: sample{"e", 5}},
		{name: "尾随带括号的说明", input: "{\"name\":\"f\",\"count\":6} note: {\"x\":}", want: sample{"f", 6}},
		{name: "多个对象取第一个", input: "```json\n{\"name\":\"g\",\"count\":7}\n```\nAlternative: {\"name\":\"h\",\"count\":8}", want: sample{"g", 7}},
		{name: "没有对象", input: "I cannot grade this", wantErr: true},
		{name: "空输入", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got sample
			err := Decode(tt.input, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecode_NoObject(t *testing.T) {
	var got sample
	if err := Decode("plain text", &got); !errors.Is(err, ErrNoObject) {
		t.Errorf("expected ErrNoObject, got %v", err)
	}
}

func TestRepair_FastPath(t *testing.T) {
	in := `{"a":[1,2,3]}`
	if got := Repair(in); got != in {
		t.Errorf("Repair() = %s, want unchanged", got)
	}
}

func TestRepair_TrailingObject(t *testing.T) {
	verdict := `{"scores":{"compliance":1,"citation":1,"reasoning":1},"feedback":"ok"}`
	if got := Repair(verdict + ` trailing {"x":}`); got != verdict {
		t.Errorf("Repair() = %s, want %s", got, verdict)
	}
}
