package journal

// Column lists and row scanners shared by the SQL backends. Both
// database/sql rows and pgx rows satisfy rowScanner.

type rowScanner interface {
	Scan(dest ...any) error
}

const runColumns = `run_id, created, instrument, dataset, session, strategy, sizer, config,
	start_time, end_time, bars, starting_equity, ending_equity, closed_trades, wins, losses,
	win_rate, total_pl, avg_trade_pl, gross_profit, gross_loss, profit_factor,
	max_drawdown, max_drawdown_pct, open_at_end`

const eventColumns = `run_id, seq, bar, kind, time, side, price, size_delta, position_size,
	avg_entry, realized_pl, reason`

const tradeColumns = `run_id, trade_no, side, entry_time, entry_price, exit_time, exit_price,
	size, adds, realized_pl, reason`

const equityColumns = `run_id, time, equity, realized, unrealized`

func runArgs(r RunRecord) []any {
	s := r.Summary
	cfg := r.Config
	if len(cfg) == 0 {
		cfg = []byte("{}")
	}
	return []any{
		r.RunID, r.Created.UTC(), r.Instrument, r.Dataset, r.Session, r.Strategy, r.Sizer, string(cfg),
		r.Start, r.End, r.Bars, s.StartingEquity, s.EndingEquity, s.ClosedTrades, s.Wins, s.Losses,
		s.WinRate, s.TotalPL, s.AvgTradePL, s.GrossProfit, s.GrossLoss, s.ProfitFactor,
		s.MaxDrawdown, s.MaxDrawdownPct, s.OpenAtEnd,
	}
}

func scanRun(row rowScanner) (RunRecord, error) {
	var r RunRecord
	var cfg string
	s := &r.Summary
	err := row.Scan(
		&r.RunID, &r.Created, &r.Instrument, &r.Dataset, &r.Session, &r.Strategy, &r.Sizer, &cfg,
		&r.Start, &r.End, &r.Bars, &s.StartingEquity, &s.EndingEquity, &s.ClosedTrades, &s.Wins, &s.Losses,
		&s.WinRate, &s.TotalPL, &s.AvgTradePL, &s.GrossProfit, &s.GrossLoss, &s.ProfitFactor,
		&s.MaxDrawdown, &s.MaxDrawdownPct, &s.OpenAtEnd,
	)
	if err != nil {
		return RunRecord{}, err
	}
	r.Config = []byte(cfg)
	return r, nil
}

func eventArgs(ev EventRecord) []any {
	return []any{
		ev.RunID, ev.Seq, ev.Bar, ev.Kind, ev.Time, ev.Side, ev.Price, ev.SizeDelta,
		ev.PositionSize, ev.AvgEntry, ev.RealizedPL, ev.Reason,
	}
}

func scanEvent(row rowScanner) (EventRecord, error) {
	var ev EventRecord
	err := row.Scan(
		&ev.RunID, &ev.Seq, &ev.Bar, &ev.Kind, &ev.Time, &ev.Side, &ev.Price, &ev.SizeDelta,
		&ev.PositionSize, &ev.AvgEntry, &ev.RealizedPL, &ev.Reason,
	)
	return ev, err
}

func tradeArgs(t TradeRecord) []any {
	return []any{
		t.RunID, t.TradeNo, t.Side, t.EntryTime, t.EntryPrice, t.ExitTime, t.ExitPrice,
		t.Size, t.Adds, t.RealizedPL, t.Reason,
	}
}

func scanTrade(row rowScanner) (TradeRecord, error) {
	var t TradeRecord
	err := row.Scan(
		&t.RunID, &t.TradeNo, &t.Side, &t.EntryTime, &t.EntryPrice, &t.ExitTime, &t.ExitPrice,
		&t.Size, &t.Adds, &t.RealizedPL, &t.Reason,
	)
	return t, err
}

func equityArgs(e EquityRecord) []any {
	return []any{e.RunID, e.Time, e.Equity, e.Realized, e.Unrealized}
}

func scanEquity(row rowScanner) (EquityRecord, error) {
	var e EquityRecord
	err := row.Scan(&e.RunID, &e.Time, &e.Equity, &e.Realized, &e.Unrealized)
	return e, err
}
