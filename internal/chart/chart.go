// Package chart renders candlestick charts for signal messages and formats
// prices for their axis labels.
package chart

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"volume-screener/internal/model"
)

const (
	chartWidth  = 1100
	chartHeight = 650

	marginLeft   = 70.0
	marginRight  = 20.0
	marginTop    = 50.0
	marginBottom = 30.0

	// Volume panel takes the bottom ~30% of the plot area.
	volumeShare = 0.30

	maWindow = 20

	priceLabelDigits = 2
)

var (
	colorBackground = "#282D38"
	colorGrid       = "#3A4150"
	colorText       = "#D1D4DC"
	colorUp         = "#0C967F"
	colorDown       = "#F23645"
	colorMA         = "#F5C242"
)

// Render draws a candlestick chart with a volume panel and a 20-period
// moving-average overlay, and returns it PNG-encoded. startPrice and
// finalPrice feed the title line together with the daily change percent.
func Render(klines []model.Kline, symbol string, startPrice, finalPrice, changePct float64) ([]byte, error) {
	if len(klines) == 0 {
		return nil, fmt.Errorf("chart: no klines for %s", symbol)
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetHexColor(colorBackground)
	dc.Clear()

	plotW := float64(chartWidth) - marginLeft - marginRight
	plotH := float64(chartHeight) - marginTop - marginBottom
	volH := plotH * volumeShare
	priceH := plotH - volH - 10
	priceTop := marginTop
	volTop := marginTop + priceH + 10

	lo, hi := priceRange(klines)
	if hi == lo {
		hi = lo + 1
	}
	maxVol := maxVolume(klines)
	if maxVol <= 0 {
		maxVol = 1
	}

	n := len(klines)
	slot := plotW / float64(n)
	bodyW := slot * 0.7
	if bodyW < 1 {
		bodyW = 1
	}

	priceY := func(p float64) float64 {
		return priceTop + priceH*(1-(p-lo)/(hi-lo))
	}
	centerX := func(i int) float64 {
		return marginLeft + slot*(float64(i)+0.5)
	}

	drawGrid(dc, priceY, lo, hi, plotW)

	// Candles and volume bars.
	for i, k := range klines {
		x := centerX(i)
		up := k.Close >= k.Open
		if up {
			dc.SetHexColor(colorUp)
		} else {
			dc.SetHexColor(colorDown)
		}

		dc.SetLineWidth(1)
		dc.DrawLine(x, priceY(k.High), x, priceY(k.Low))
		dc.Stroke()

		top, bot := k.Open, k.Close
		if up {
			top, bot = k.Close, k.Open
		}
		h := priceY(bot) - priceY(top)
		if h < 1 {
			h = 1
		}
		dc.DrawRectangle(x-bodyW/2, priceY(top), bodyW, h)
		dc.Fill()

		vh := volH * (k.BaseVolume / maxVol)
		dc.DrawRectangle(x-bodyW/2, volTop+volH-vh, bodyW, vh)
		dc.Fill()
	}

	drawMA(dc, klines, priceY, centerX)

	// Title.
	dc.SetHexColor(colorText)
	title := fmt.Sprintf("%s | %s$ → %s$ | %.2f%%",
		symbol,
		FormatPrice(startPrice, priceLabelDigits),
		FormatPrice(finalPrice, priceLabelDigits),
		changePct)
	dc.DrawStringAnchored(title, float64(chartWidth)/2, marginTop/2, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("chart: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawGrid(dc *gg.Context, priceY func(float64) float64, lo, hi, plotW float64) {
	const lines = 6
	for i := 0; i <= lines; i++ {
		p := lo + (hi-lo)*float64(i)/lines
		y := priceY(p)

		dc.SetHexColor(colorGrid)
		dc.SetLineWidth(0.5)
		dc.DrawLine(marginLeft, y, marginLeft+plotW, y)
		dc.Stroke()

		dc.SetHexColor(colorText)
		dc.DrawStringAnchored(FormatPrice(p, priceLabelDigits), marginLeft-6, y, 1, 0.5)
	}
}

func drawMA(dc *gg.Context, klines []model.Kline, priceY func(float64) float64, centerX func(int) float64) {
	if len(klines) < maWindow {
		return
	}
	dc.SetHexColor(colorMA)
	dc.SetLineWidth(1.5)

	sum := 0.0
	started := false
	for i, k := range klines {
		sum += k.Close
		if i >= maWindow {
			sum -= klines[i-maWindow].Close
		}
		if i < maWindow-1 {
			continue
		}
		ma := sum / maWindow
		if !started {
			dc.MoveTo(centerX(i), priceY(ma))
			started = true
		} else {
			dc.LineTo(centerX(i), priceY(ma))
		}
	}
	dc.Stroke()
}

func priceRange(klines []model.Kline) (lo, hi float64) {
	lo, hi = klines[0].Low, klines[0].High
	for _, k := range klines[1:] {
		if k.Low < lo {
			lo = k.Low
		}
		if k.High > hi {
			hi = k.High
		}
	}
	return lo, hi
}

func maxVolume(klines []model.Kline) float64 {
	m := 0.0
	for _, k := range klines {
		if k.BaseVolume > m {
			m = k.BaseVolume
		}
	}
	return m
}
