package algo

// Item is an open-set entry. Priority is the f-score; Tie carries the
// heuristic estimate so equal-priority pops break toward the goal,
// keeping searches deterministic.
type Item struct {
	Value    int
	Priority float64
	Tie      float64
	Index    int
}

// PriorityQueue implements heap.Interface over open-set items.
type PriorityQueue []*Item

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority < pq[j].Priority
	}
	if pq[i].Tie != pq[j].Tie {
		return pq[i].Tie < pq[j].Tie
	}
	return pq[i].Value < pq[j].Value
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *PriorityQueue) Push(x any) {
	item := x.(*Item)
	item.Index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *PriorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	*pq = old[:n-1]
	return item
}
