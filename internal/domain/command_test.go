package domain

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		kind CommandKind
		arg  string
	}{
		{"/ask what is go?", CommandAsk, "what is go?"},
		{"  /DeepSeek   explain channels ", CommandAsk, "explain channels"},
		{"/ai", CommandAsk, ""},
		{"/wiki Gopher", CommandWiki, "Gopher"},
		{"/summarize", CommandSummarize, ""},
		{"/context", CommandContext, ""},
		{"/balance", CommandBalance, ""},
		{"/ask@assistant hi", CommandAsk, "hi"},
		{"/ask\nhello", CommandAsk, "hello"},
		{"/ask\thello", CommandAsk, "hello"},
		{"/wiki\r\nGo\nconcurrency", CommandWiki, "Go\nconcurrency"},
		{"/ask\u00a0hi", CommandAsk, "hi"},
		{"/unknown thing", CommandNone, ""},
		{"hello /ask", CommandNone, ""},
		{"", CommandNone, ""},
	}
	for _, tc := range cases {
		got := ParseCommand(tc.in)
		if got.Kind != tc.kind || got.Arg != tc.arg {
			t.Fatalf("ParseCommand(%q) = %+v; want kind=%q arg=%q", tc.in, got, tc.kind, tc.arg)
		}
	}
}

func TestCommand_InvokesAssistant(t *testing.T) {
	if !(Command{Kind: CommandAsk}).InvokesAssistant() || !(Command{Kind: CommandWiki}).InvokesAssistant() {
		t.Fatalf("ask and wiki should invoke the assistant")
	}
	if (Command{Kind: CommandBalance}).InvokesAssistant() || (Command{}).InvokesAssistant() {
		t.Fatalf("balance and plain text should not invoke the assistant")
	}
}
