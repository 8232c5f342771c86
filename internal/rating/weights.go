package rating

import "github.com/yourorg/mfl-sync/internal/model"

// weights are integer percentages over the six outfield attributes. Each vector
// sums to 100; goalkeepers are rated on goalkeeping alone.
type weights struct {
	Passing, Shooting, Defense, Dribbling, Pace, Physical, Goalkeeping int
}

var positionWeights = map[model.Position]weights{
	model.GK:  {Goalkeeping: 100},
	model.ST:  {Passing: 10, Shooting: 46, Defense: 0, Dribbling: 29, Pace: 10, Physical: 5},
	model.CF:  {Passing: 24, Shooting: 23, Defense: 0, Dribbling: 40, Pace: 13, Physical: 0},
	model.LW:  {Passing: 24, Shooting: 23, Defense: 0, Dribbling: 40, Pace: 13, Physical: 0},
	model.RW:  {Passing: 24, Shooting: 23, Defense: 0, Dribbling: 40, Pace: 13, Physical: 0},
	model.CAM: {Passing: 34, Shooting: 21, Defense: 0, Dribbling: 38, Pace: 7, Physical: 0},
	model.CM:  {Passing: 43, Shooting: 12, Defense: 10, Dribbling: 29, Pace: 0, Physical: 6},
	model.LM:  {Passing: 43, Shooting: 12, Defense: 10, Dribbling: 29, Pace: 0, Physical: 6},
	model.RM:  {Passing: 43, Shooting: 12, Defense: 10, Dribbling: 29, Pace: 0, Physical: 6},
	model.CDM: {Passing: 28, Shooting: 0, Defense: 40, Dribbling: 17, Pace: 0, Physical: 15},
	model.LWB: {Passing: 19, Shooting: 0, Defense: 44, Dribbling: 17, Pace: 10, Physical: 10},
	model.RWB: {Passing: 19, Shooting: 0, Defense: 44, Dribbling: 17, Pace: 10, Physical: 10},
	model.LB:  {Passing: 19, Shooting: 0, Defense: 44, Dribbling: 17, Pace: 10, Physical: 10},
	model.RB:  {Passing: 19, Shooting: 0, Defense: 44, Dribbling: 17, Pace: 10, Physical: 10},
	model.CB:  {Passing: 5, Shooting: 0, Defense: 64, Dribbling: 9, Pace: 2, Physical: 20},
}

// Adjacency levels between a trained position and a neighbor.
const (
	somewhatFamiliar = 1
	fairlyFamiliar   = 2
)

// adjacency maps a trained position to the neighbors a player can cover.
var adjacency = map[model.Position]map[model.Position]int{
	model.GK:  {},
	model.CB:  {model.RB: somewhatFamiliar, model.LB: somewhatFamiliar, model.CDM: somewhatFamiliar},
	model.RB:  {model.CB: somewhatFamiliar, model.LB: somewhatFamiliar, model.RWB: fairlyFamiliar, model.RM: somewhatFamiliar},
	model.LB:  {model.CB: somewhatFamiliar, model.RB: somewhatFamiliar, model.LWB: fairlyFamiliar, model.LM: somewhatFamiliar},
	model.RWB: {model.RB: fairlyFamiliar, model.LWB: somewhatFamiliar, model.RM: somewhatFamiliar, model.RW: somewhatFamiliar},
	model.LWB: {model.LB: fairlyFamiliar, model.RWB: somewhatFamiliar, model.LM: somewhatFamiliar, model.LW: somewhatFamiliar},
	model.CDM: {model.CB: somewhatFamiliar, model.CM: fairlyFamiliar, model.CAM: somewhatFamiliar},
	model.CM:  {model.CDM: fairlyFamiliar, model.CAM: fairlyFamiliar, model.RM: somewhatFamiliar, model.LM: somewhatFamiliar},
	model.CAM: {model.CDM: somewhatFamiliar, model.CM: fairlyFamiliar, model.CF: fairlyFamiliar},
	model.RM:  {model.RB: somewhatFamiliar, model.RWB: somewhatFamiliar, model.CM: somewhatFamiliar, model.LM: somewhatFamiliar, model.RW: fairlyFamiliar},
	model.LM:  {model.LB: somewhatFamiliar, model.LWB: somewhatFamiliar, model.CM: somewhatFamiliar, model.RM: somewhatFamiliar, model.LW: fairlyFamiliar},
	model.RW:  {model.RWB: somewhatFamiliar, model.RM: fairlyFamiliar, model.LW: somewhatFamiliar},
	model.LW:  {model.LWB: somewhatFamiliar, model.LM: fairlyFamiliar, model.RW: somewhatFamiliar},
	model.CF:  {model.CAM: fairlyFamiliar, model.ST: fairlyFamiliar},
	model.ST:  {model.CF: fairlyFamiliar},
}

// weightedAverage applies the position's weight vector to a.
func (w weights) weightedAverage(a model.Attributes) float64 {
	sum := a.Passing*w.Passing +
		a.Shooting*w.Shooting +
		a.Defense*w.Defense +
		a.Dribbling*w.Dribbling +
		a.Pace*w.Pace +
		a.Physical*w.Physical +
		a.Goalkeeping*w.Goalkeeping
	return float64(sum) / 100
}
