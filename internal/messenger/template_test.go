package messenger

import "testing"

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		channel  string
		title    string
		want     string
	}{
		{
			name:     "default template",
			template: "New video from {channel}: {title}",
			channel:  "Example Channel",
			title:    "Episode 1",
			want:     "New video from Example Channel: Episode 1",
		},
		{
			name:     "placeholder repeated",
			template: "{title} / {title}",
			channel:  "c",
			title:    "Episode 1",
			want:     "Episode 1 / Episode 1",
		},
		{
			name:     "no placeholders",
			template: "new upload",
			channel:  "c",
			title:    "t",
			want:     "new upload",
		},
		{
			name:     "unknown placeholder passes through",
			template: "{channel} {url}",
			channel:  "Example Channel",
			title:    "t",
			want:     "Example Channel {url}",
		},
		{
			name:     "empty template",
			template: "",
			channel:  "c",
			title:    "t",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderTemplate(tt.template, tt.channel, tt.title)
			if got != tt.want {
				t.Errorf("RenderTemplate(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}
