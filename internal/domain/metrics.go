package domain

import (
	"math"
	"strconv"
)

// LevelSpacingM is the vertical spacing of profile levels in metres AGL.
const LevelSpacingM = 250

// Metric keys reported by ComputeLayerMetrics.
const (
	MetricUpperNoseHeight = "upper_nose_height_agl"
	MetricLowerNoseHeight = "lower_nose_height_agl"
	MetricWarmNoseDepth   = "warm_nose_depth_m"
	MetricWarmNoseArea    = "warm_nose_area"
	MetricColdLayerDepth  = "cold_layer_depth_m"
	MetricColdLayerArea   = "cold_layer_area"

	notAvailable = "N/A"
)

var metricKeys = []string{
	MetricUpperNoseHeight, MetricLowerNoseHeight, MetricWarmNoseDepth,
	MetricWarmNoseArea, MetricColdLayerDepth, MetricColdLayerArea,
}

// ComputeLayerMetrics describes an elevated warm layer (temperature above
// 0 °C) and the sub-freezing layer beneath it, Bourgouin style. Areas are
// trapezoid integrals of temperature over the layer with a step of
// len(layer)*LevelSpacingM, matching the prediction service. Values are
// truncated integers rendered as strings; all keys are "N/A" when there is no
// warm layer or no cold air below it.
func ComputeLayerMetrics(temperature []float64) Metrics {
	var warm []int
	for i, t := range temperature {
		if t > 0 {
			warm = append(warm, i)
		}
	}
	if len(warm) == 0 {
		return unavailableMetrics()
	}

	lowestWarm := warm[0]
	var cold []int
	for i := 0; i < lowestWarm; i++ {
		if temperature[i] < 0 {
			cold = append(cold, i)
		}
	}
	if len(cold) == 0 {
		return unavailableMetrics()
	}

	top, bottom := warm[len(warm)-1], warm[0]
	coldTop, coldBottom := cold[len(cold)-1], cold[0]

	return Metrics{
		MetricUpperNoseHeight: strconv.Itoa(top * LevelSpacingM),
		MetricLowerNoseHeight: strconv.Itoa(bottom * LevelSpacingM),
		MetricWarmNoseDepth:   strconv.Itoa((top - bottom) * LevelSpacingM),
		MetricWarmNoseArea:    strconv.Itoa(int(math.Abs(layerArea(temperature, warm)))),
		MetricColdLayerDepth:  strconv.Itoa((coldTop - coldBottom) * LevelSpacingM),
		MetricColdLayerArea:   strconv.Itoa(int(math.Abs(layerArea(temperature, cold)))),
	}
}

func unavailableMetrics() Metrics {
	m := make(Metrics, len(metricKeys))
	for _, k := range metricKeys {
		m[k] = notAvailable
	}
	return m
}

func layerArea(temperature []float64, idx []int) float64 {
	dx := float64(len(idx) * LevelSpacingM)
	var sum float64
	for k := 1; k < len(idx); k++ {
		sum += (temperature[idx[k-1]] + temperature[idx[k]]) / 2
	}
	return sum * dx
}

// BuoyancyAreas integrates g*(T-T0)/T0*dz over adjacent level pairs using the
// layer-mean temperature, with T0 = 273.15 K and dz = LevelSpacingM. Positive
// and negative contributions are accumulated separately.
func BuoyancyAreas(temperature []float64) (positive, negative float64) {
	const (
		g  = 9.81
		t0 = 273.15
	)
	for i := 0; i+1 < len(temperature); i++ {
		avg := (temperature[i]+temperature[i+1])/2 + t0
		area := g * ((avg - t0) / t0) * LevelSpacingM
		if area <= 0 {
			negative += area
		} else {
			positive += area
		}
	}
	return positive, negative
}
