package message

import "testing"

func TestRender_AllowListedField(t *testing.T) {
	got := Render("Priority: {priority}, client: {client}",
		[]string{"priority"},
		map[string]string{"priority": "High", "client": "Acme"})
	want := "Priority: High, client: {client}"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRender_FilenameAndOffsetAlwaysSubstituted(t *testing.T) {
	got := Render("{filename} in {offset}", nil,
		map[string]string{"filename": "taxes", "offset": "-7d"})
	if got != "taxes in -7d" {
		t.Errorf("got %q", got)
	}
}

func TestRender_TaskImplicitlyAllowed(t *testing.T) {
	got := Render("Due: {task}", nil, map[string]string{"task": "file the report"})
	if got != "Due: file the report" {
		t.Errorf("got %q", got)
	}
}

func TestRender_MissingDataLeavesPlaceholder(t *testing.T) {
	got := Render("Hi {filename}", nil, map[string]string{})
	if got != "Hi {filename}" {
		t.Errorf("got %q, want placeholder left verbatim", got)
	}
}

func TestRender_NotAllowedLeavesPlaceholder(t *testing.T) {
	// Value present in data but field not allow-listed.
	got := Render("{secret}", nil, map[string]string{"secret": "hunter2"})
	if got != "{secret}" {
		t.Errorf("got %q, want placeholder left verbatim", got)
	}
}

func TestRender_NoPlaceholders(t *testing.T) {
	got := Render("plain text", []string{"a"}, map[string]string{"a": "b"})
	if got != "plain text" {
		t.Errorf("got %q", got)
	}
}

func TestRender_EmptyValueSubstituted(t *testing.T) {
	// A defined-but-empty value is still a defined value.
	got := Render("[{offset}]", nil, map[string]string{"offset": ""})
	if got != "[]" {
		t.Errorf("got %q", got)
	}
}
