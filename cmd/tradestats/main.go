// tradestats summarizes a closed-trade history file: per-symbol win rates,
// profit factors, and the Kelly fraction the sizing layer would derive from
// each symbol's record.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"smart-trading-engine/internal/market"
	"smart-trading-engine/internal/sizing"
)

type symbolStats struct {
	Symbol        string
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	TotalProfit   float64
	TotalLoss     float64
	ProfitFactor  float64
	KellyFraction float64
}

func main() {
	path := flag.String("trades", "trades.json", "path to a JSON array of trade records")
	minTrades := flag.Int("min-trades", 1, "hide symbols with fewer trades")
	flag.Parse()

	trades, err := loadTrades(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tradestats: %v\n", err)
		os.Exit(1)
	}
	if len(trades) == 0 {
		fmt.Println("no trades in file")
		return
	}

	bySymbol := make(map[string][]market.TradeRecord)
	for _, t := range trades {
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}

	kelly := sizing.NewKellyCalculator(sizing.DefaultFeeSchedule(), sizing.FeeTierDefault)

	var stats []symbolStats
	for symbol, records := range bySymbol {
		if len(records) < *minTrades {
			continue
		}
		stats = append(stats, summarize(symbol, records, kelly))
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].TotalProfit-stats[i].TotalLoss > stats[j].TotalProfit-stats[j].TotalLoss
	})

	fmt.Printf("%-12s %7s %6s %6s %8s %8s %8s %8s\n",
		"SYMBOL", "TRADES", "WINS", "LOSSES", "WINRATE", "PF", "NET%", "KELLY")
	for _, s := range stats {
		pf := "inf"
		if s.TotalLoss > 0 {
			pf = fmt.Sprintf("%.2f", s.ProfitFactor)
		}
		fmt.Printf("%-12s %7d %6d %6d %7.1f%% %8s %7.2f%% %7.1f%%\n",
			s.Symbol, s.TotalTrades, s.WinningTrades, s.LosingTrades,
			s.WinRate*100, pf, (s.TotalProfit-s.TotalLoss)*100, s.KellyFraction*100)
	}

	overall := summarize("TOTAL", trades, kelly)
	fmt.Printf("\n%d trades across %d symbols, net %.2f%%, win rate %.1f%%\n",
		overall.TotalTrades, len(bySymbol),
		(overall.TotalProfit-overall.TotalLoss)*100, overall.WinRate*100)
}

func loadTrades(path string) ([]market.TradeRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var trades []market.TradeRecord
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return trades, nil
}

func summarize(symbol string, records []market.TradeRecord, kelly *sizing.KellyCalculator) symbolStats {
	s := symbolStats{Symbol: symbol, TotalTrades: len(records)}
	for _, t := range records {
		if t.ProfitPct > 0 {
			s.WinningTrades++
			s.TotalProfit += t.ProfitPct
		} else if t.ProfitPct < 0 {
			s.LosingTrades++
			s.TotalLoss += -t.ProfitPct
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	}
	if s.TotalLoss > 0 {
		s.ProfitFactor = s.TotalProfit / s.TotalLoss
	}

	perf := kelly.UpdatePerformance(records)
	s.KellyFraction = perf.KellyPercentage
	return s
}
