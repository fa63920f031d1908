package timetable

import (
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// maxRoomOptions bounds the per-hour room options considered when building blocks.
const maxRoomOptions = 3

// statusScore returns the desirability of a status; ok is false for UNAVAILABLE.
func statusScore(status models.AvailabilityStatus) (score int, ok bool) {
	switch status {
	case models.StatusPreferred:
		return 2, true
	case models.StatusUnavailable:
		return 0, false
	default:
		return 1, true
	}
}

type candidateGenerator struct {
	calendar models.CalendarConfig
	teachers map[string]*models.Teacher
	classes  map[string]*models.ClassSection
	rooms    []models.Room
	occupied occupancy
}

func newCandidateGenerator(snapshot models.Snapshot, occupied occupancy) *candidateGenerator {
	g := &candidateGenerator{
		calendar: snapshot.Calendar,
		teachers: make(map[string]*models.Teacher, len(snapshot.Teachers)),
		classes:  make(map[string]*models.ClassSection, len(snapshot.Classes)),
		rooms:    snapshot.Rooms,
		occupied: occupied,
	}
	for i := range snapshot.Teachers {
		g.teachers[snapshot.Teachers[i].ID] = &snapshot.Teachers[i]
	}
	for i := range snapshot.Classes {
		g.classes[snapshot.Classes[i].ID] = &snapshot.Classes[i]
	}
	return g
}

// generate lists the feasible placements of a group, best first. A nil result marks a dead group.
func (g *candidateGenerator) generate(group *LessonGroup, rng *rand.Rand) []BlockCandidate {
	teacher, ok := g.teachers[group.TeacherID]
	if !ok {
		return nil
	}
	class, ok := g.classes[group.ClassID]
	if !ok {
		return nil
	}
	start, end, ok := activeWindow(class, g.calendar)
	if !ok {
		return nil
	}

	slots := g.slots(group, teacher, class, start, end)
	if len(slots) == 0 {
		return nil
	}

	var candidates []BlockCandidate
	if group.BlockSize <= 1 {
		candidates = singleCandidates(slots)
	} else {
		candidates = blockCandidates(slots, group.BlockSize)
	}
	sortCandidates(candidates, rng)
	return candidates
}

// activeWindow returns the inclusive hour window in which the class may be taught.
func activeWindow(class *models.ClassSection, calendar models.CalendarConfig) (int, int, bool) {
	if class.Availability.HasUnavailable() {
		lo, hi := -1, -1
		for day := 0; day < calendar.DaysInWeek; day++ {
			for hour := 0; hour < calendar.SlotCount(day); hour++ {
				if class.Availability.Status(day, hour) == models.StatusUnavailable {
					continue
				}
				if lo == -1 || hour < lo {
					lo = hour
				}
				if hour > hi {
					hi = hour
				}
			}
		}
		if lo == -1 {
			return 0, 0, false
		}
		return lo, hi, true
	}
	if r := class.ActiveHourRange; r != nil {
		return r.Start, r.End, r.Start >= 0 && r.End >= r.Start
	}
	maxSlots := calendar.MaxSlots()
	if maxSlots == 0 {
		return 0, 0, false
	}
	return 0, maxSlots - 1, true
}

func (g *candidateGenerator) slots(group *LessonGroup, teacher *models.Teacher, class *models.ClassSection, start, end int) []Slot {
	var slots []Slot
	for day := 0; day < g.calendar.DaysInWeek; day++ {
		dayEnd := end
		if last := g.calendar.SlotCount(day) - 1; last < dayEnd {
			dayEnd = last
		}
		if start > dayEnd || !classOpenBetween(class, day, start, dayEnd) {
			continue
		}
		for hour := start; hour <= dayEnd; hour++ {
			teacherScore, ok := statusScore(teacher.Availability.Status(day, hour))
			if !ok {
				continue
			}
			classScore, ok := statusScore(class.Availability.Status(day, hour))
			if !ok {
				continue
			}
			if g.occupied.has(teacherKey(group.TeacherID, day, hour)) || g.occupied.has(classKey(group.ClassID, day, hour)) {
				continue
			}
			base := teacherScore + classScore
			if len(g.rooms) == 0 {
				slots = append(slots, Slot{Day: day, Hour: hour, Score: base})
				continue
			}
			for _, room := range g.rooms {
				roomScore, ok := statusScore(room.Availability.Status(day, hour))
				if !ok || g.occupied.has(roomKey(room.ID, day, hour)) {
					continue
				}
				slots = append(slots, Slot{Day: day, Hour: hour, RoomID: room.ID, Score: base + roomScore})
			}
		}
	}
	return slots
}

func classOpenBetween(class *models.ClassSection, day, start, end int) bool {
	for hour := start; hour <= end; hour++ {
		if class.Availability.Status(day, hour) != models.StatusUnavailable {
			return true
		}
	}
	return false
}

type slotID struct {
	day    int
	hour   int
	roomID string
}

func singleCandidates(slots []Slot) []BlockCandidate {
	best := make(map[slotID]Slot, len(slots))
	order := make([]slotID, 0, len(slots))
	for _, slot := range slots {
		id := slotID{day: slot.Day, hour: slot.Hour, roomID: slot.RoomID}
		current, ok := best[id]
		if !ok {
			order = append(order, id)
		}
		if !ok || slot.Score > current.Score {
			best[id] = slot
		}
	}
	candidates := make([]BlockCandidate, 0, len(order))
	for _, id := range order {
		slot := best[id]
		candidates = append(candidates, BlockCandidate{Slots: []Slot{slot}, TotalScore: slot.Score})
	}
	return candidates
}

// blockCandidates slides a window of size contiguous hours over every day and combines the
// best room options of each hour into full blocks.
func blockCandidates(slots []Slot, size int) []BlockCandidate {
	byDay := make(map[int]map[int][]Slot)
	for _, slot := range slots {
		if byDay[slot.Day] == nil {
			byDay[slot.Day] = make(map[int][]Slot)
		}
		byDay[slot.Day][slot.Hour] = append(byDay[slot.Day][slot.Hour], slot)
	}
	days := make([]int, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Ints(days)

	seen := make(map[string]struct{})
	var candidates []BlockCandidate
	for _, day := range days {
		hours := byDay[day]
		if len(hours) < size {
			continue
		}
		lo, hi := hourBounds(hours)
		for first := lo; first+size-1 <= hi; first++ {
			options := make([][]Slot, size)
			feasible := true
			for offset := 0; offset < size; offset++ {
				opts := topRoomOptions(hours[first+offset], maxRoomOptions)
				if len(opts) == 0 {
					feasible = false
					break
				}
				options[offset] = opts
			}
			if !feasible {
				continue
			}
			cartesian(options, func(combo []Slot) {
				signature := blockSignature(combo)
				if _, dup := seen[signature]; dup {
					return
				}
				seen[signature] = struct{}{}
				block := make([]Slot, len(combo))
				copy(block, combo)
				total := 0
				for _, slot := range block {
					total += slot.Score
				}
				candidates = append(candidates, BlockCandidate{Slots: block, TotalScore: total})
			})
		}
	}
	return candidates
}

func hourBounds(hours map[int][]Slot) (int, int) {
	lo, hi := -1, -1
	for hour := range hours {
		if lo == -1 || hour < lo {
			lo = hour
		}
		if hour > hi {
			hi = hour
		}
	}
	return lo, hi
}

// topRoomOptions keeps the limit best-scoring distinct rooms for one (day, hour).
func topRoomOptions(options []Slot, limit int) []Slot {
	if len(options) == 0 {
		return nil
	}
	sorted := make([]Slot, len(options))
	copy(sorted, options)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score == sorted[j].Score {
			return sorted[i].RoomID < sorted[j].RoomID
		}
		return sorted[i].Score > sorted[j].Score
	})
	result := make([]Slot, 0, limit)
	rooms := make(map[string]struct{}, limit)
	for _, slot := range sorted {
		if _, dup := rooms[slot.RoomID]; dup {
			continue
		}
		rooms[slot.RoomID] = struct{}{}
		result = append(result, slot)
		if len(result) == limit {
			break
		}
	}
	return result
}

func cartesian(options [][]Slot, emit func([]Slot)) {
	combo := make([]Slot, len(options))
	var walk func(int)
	walk = func(depth int) {
		if depth == len(options) {
			emit(combo)
			return
		}
		for _, slot := range options[depth] {
			combo[depth] = slot
			walk(depth + 1)
		}
	}
	walk(0)
}

func blockSignature(slots []Slot) string {
	var buf strings.Builder
	for i, slot := range slots {
		if i > 0 {
			buf.WriteByte('|')
		}
		buf.WriteString(strconv.Itoa(slot.Day))
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(slot.Hour))
		buf.WriteByte(':')
		buf.WriteString(slot.RoomID)
	}
	return buf.String()
}

// sortCandidates orders by descending score, shuffling candidates with equal scores.
func sortCandidates(candidates []BlockCandidate, rng *rand.Rand) {
	if rng != nil {
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TotalScore > candidates[j].TotalScore
	})
}
