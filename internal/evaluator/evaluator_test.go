package evaluator

import (
	"testing"

	"shoppersprint-alerts/internal/models"
)

func floatPtr(f float64) *float64 { return &f }

func TestShouldTriggerBelow(t *testing.T) {
	alert := &models.PriceAlert{AlertType: models.AlertTypeBelow, TargetPrice: 90000}

	tests := []struct {
		name  string
		price int64
		want  bool
	}{
		{"well below target", 85000, true},
		{"exactly at target", 90000, true},
		{"one cent above", 90001, false},
		{"well above target", 120000, false},
		{"free product", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldTrigger(alert, tt.price); got != tt.want {
				t.Errorf("ShouldTrigger(below 90000, %d) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestShouldTriggerAbove(t *testing.T) {
	alert := &models.PriceAlert{AlertType: models.AlertTypeAbove, TargetPrice: 150000}

	tests := []struct {
		name  string
		price int64
		want  bool
	}{
		{"well above target", 200000, true},
		{"exactly at target", 150000, true},
		{"one cent below", 149999, false},
		{"well below target", 100000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldTrigger(alert, tt.price); got != tt.want {
				t.Errorf("ShouldTrigger(above 150000, %d) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestShouldTriggerPercentage(t *testing.T) {
	tests := []struct {
		name      string
		target    int64
		threshold *float64
		price     int64
		want      bool
	}{
		{"drop beyond threshold", 100000, floatPtr(10), 85000, true},
		{"drop exactly at threshold", 100000, floatPtr(10), 90000, true},
		{"drop inside threshold", 100000, floatPtr(10), 91000, false},
		{"rise beyond threshold", 100000, floatPtr(10), 115000, true},
		{"rise exactly at threshold", 100000, floatPtr(10), 110000, true},
		{"rise inside threshold", 100000, floatPtr(10), 109999, false},
		{"unchanged price", 100000, floatPtr(10), 100000, false},
		{"zero threshold always fires", 100000, floatPtr(0), 100000, true},
		{"missing threshold is inert", 100000, nil, 1, false},
		{"zero target is inert", 0, floatPtr(10), 50000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := &models.PriceAlert{
				AlertType:   models.AlertTypePercentage,
				TargetPrice: tt.target,
				Threshold:   tt.threshold,
			}
			if got := ShouldTrigger(alert, tt.price); got != tt.want {
				t.Errorf("ShouldTrigger(percentage target=%d threshold=%v, %d) = %v, want %v",
					tt.target, tt.threshold, tt.price, got, tt.want)
			}
		})
	}
}

func TestShouldTriggerUnknownType(t *testing.T) {
	alert := &models.PriceAlert{AlertType: "weekly_digest", TargetPrice: 100}

	if ShouldTrigger(alert, 1) {
		t.Error("unknown alert type should never trigger")
	}
}
