package entities

// Bucket accumulates the count and display value of transactions in one direction
type Bucket struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// AllBucket is the bucket across every direction, with net = inbound - outbound
type AllBucket struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
	Net   float64 `json:"net"`
}

// TxStats holds per-direction statistics
type TxStats struct {
	Inbound  Bucket    `json:"inbound"`
	Outbound Bucket    `json:"outbound"`
	Internal Bucket    `json:"internal"`
	All      AllBucket `json:"all"`
}

// Add records value in the given direction and in the all bucket, keeping net
func (s *TxStats) Add(direction Direction, value float64) {
	if !s.Record(direction, value) {
		return
	}
	switch direction {
	case DirectionInbound:
		s.All.Net += value
	case DirectionOutbound:
		s.All.Net -= value
	}
}

// Record counts value in the given direction and in the all bucket; net is left untouched
func (s *TxStats) Record(direction Direction, value float64) bool {
	switch direction {
	case DirectionInbound:
		s.Inbound.Count++
		s.Inbound.Value += value
	case DirectionOutbound:
		s.Outbound.Count++
		s.Outbound.Value += value
	case DirectionInternal:
		s.Internal.Count++
		s.Internal.Value += value
	default:
		return false
	}
	s.All.Count++
	s.All.Value += value
	return true
}

// TokenStats holds statistics for one token
type TokenStats struct {
	Token Token   `json:"token"`
	Stats TxStats `json:"stats"`
}

// LeaderboardEntry aggregates the transactions of one counterparty
type LeaderboardEntry struct {
	URI          string        `json:"uri"`
	Stats        TxStats       `json:"stats"`
	Transactions []Transaction `json:"transactions"`
}

// Score is the ranking key of the entry
func (e LeaderboardEntry) Score() float64 {
	return e.Stats.Inbound.Value + e.Stats.Outbound.Value
}

// Leaderboard is a ranked sequence of entries, highest score first
type Leaderboard []LeaderboardEntry

// DirectionTotals holds normalized sums per direction for a token type
type DirectionTotals struct {
	Inbound  float64 `json:"inbound"`
	Outbound float64 `json:"outbound"`
	Internal float64 `json:"internal"`
}
