package app

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"引数なし", nil, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"未知のコマンド", []string{"unknown"}, CommandServe},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.args); got != tt.want {
			t.Errorf("%s: %q を返すべき, got %q", tt.name, tt.want, got)
		}
	}
}
