package game

import (
	"sort"

	"PopBattle/model"
)

// RoundSize 每轮曲目数量
const RoundSize = 10

// Rand is the random source used for round selection. *math/rand.Rand satisfies it;
// tests pass a seeded one.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// SelectRound 从曲库中选出一轮的 10 首歌并计算正确顺序（按热度降序）。
//
// 先按热度分桶，以随机顺序访问各个桶，每桶随机取一首，凑满 10 首为止；
// 不同热度值不足 10 个时，从剩余曲目中随机补齐。
func SelectRound(pool []model.Track, rng Rand) ([]model.Track, []string, error) {
	if len(pool) < RoundSize {
		return nil, nil, ValidationFailed("insufficient distinct tracks: need at least 10")
	}

	// 按首次出现顺序记录热度值，保证同一随机种子下结果确定
	buckets := make(map[int][]int)
	values := make([]int, 0)
	for i, t := range pool {
		if _, ok := buckets[t.Popularity]; !ok {
			values = append(values, t.Popularity)
		}
		buckets[t.Popularity] = append(buckets[t.Popularity], i)
	}
	rng.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })

	used := make(map[int]bool, RoundSize)
	picked := make([]int, 0, RoundSize)
	for _, v := range values {
		candidates := buckets[v]
		idx := candidates[rng.Intn(len(candidates))]
		picked = append(picked, idx)
		used[idx] = true
		if len(picked) == RoundSize {
			break
		}
	}

	if len(picked) < RoundSize {
		rest := make([]int, 0, len(pool)-len(picked))
		for i := range pool {
			if !used[i] {
				rest = append(rest, i)
			}
		}
		rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
		picked = append(picked, rest[:RoundSize-len(picked)]...)
	}

	tracks := make([]model.Track, len(picked))
	for i, idx := range picked {
		tracks[i] = pool[idx]
	}
	return tracks, CorrectOrder(tracks), nil
}

// CorrectOrder returns track ids sorted by popularity descending. Ties keep input order.
func CorrectOrder(tracks []model.Track) []string {
	sorted := append([]model.Track(nil), tracks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Popularity > sorted[j].Popularity
	})
	return model.TrackIDs(sorted)
}

// Score 统计位置完全正确的数量
func Score(order, correct []string) int {
	n := 0
	for i, id := range order {
		if i < len(correct) && correct[i] == id {
			n++
		}
	}
	return n
}
