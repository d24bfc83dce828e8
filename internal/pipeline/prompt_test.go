package pipeline

import "testing"

func TestIsMultiTaskPrompt(t *testing.T) {
	tests := []struct {
		prompt string
		want   bool
	}{
		{"# install apache & start apache", true},
		{"   # install apache", true},
		{"\t# install apache", true},
		{"  - name: install apache", false},
		{"install apache", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsMultiTaskPrompt(tt.prompt); got != tt.want {
			t.Errorf("IsMultiTaskPrompt(%q) = %v, want %v", tt.prompt, got, tt.want)
		}
	}
}

func TestTaskCount(t *testing.T) {
	tests := []struct {
		prompt string
		want   int
	}{
		{"# install apache", 1},
		{"# install apache & start apache", 2},
		{"# install apache & start apache & open firewall", 3},
		{"  - name: install apache & something", 1},
		{"", 1},
	}
	for _, tt := range tests {
		if got := TaskCount(tt.prompt); got != tt.want {
			t.Errorf("TaskCount(%q) = %d, want %d", tt.prompt, got, tt.want)
		}
	}
}

func TestNormalizePrompt(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{
			name:   "single task trailing colon stripped",
			prompt: "  - name: install apache:",
			want:   "  - name: install apache\n",
		},
		{
			name:   "trailing whitespace unified",
			prompt: "  - name: install apache   \t\r\n",
			want:   "  - name: install apache\n",
		},
		{
			name:   "multi task preamble stripped",
			prompt: "# - name: install apache & - name: start apache",
			want:   "# install apache & start apache\n",
		},
		{
			name:   "single task preamble preserved",
			prompt: "  - name: install apache",
			want:   "  - name: install apache\n",
		},
		{
			name:   "already normalized",
			prompt: "# install apache\n",
			want:   "# install apache\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePrompt(tt.prompt)
			if got != tt.want {
				t.Errorf("NormalizePrompt(%q) = %q, want %q", tt.prompt, got, tt.want)
			}
			if again := NormalizePrompt(got); again != got {
				t.Errorf("not idempotent: second pass %q != %q", again, got)
			}
		})
	}
}

func TestTerminateCustomPrompt(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"", ""},
		{"be brief", "be brief\n"},
		{"be brief\n", "be brief\n"},
	}
	for _, tt := range tests {
		if got := terminateCustomPrompt(tt.prompt); got != tt.want {
			t.Errorf("terminateCustomPrompt(%q) = %q, want %q", tt.prompt, got, tt.want)
		}
	}
}
