// Deterministic villager spawning for fresh worlds.
package agents

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/talgya/villagers/internal/world"
)

var givenNames = []string{
	"Alda", "Bram", "Cedric", "Dara", "Edwin", "Freya", "Garen", "Hilda",
	"Ivo", "Jorun", "Kell", "Lisbet", "Marek", "Nessa", "Osric", "Petra",
	"Quinn", "Roswitha", "Sten", "Tova", "Ulric", "Vera", "Wilm", "Ysolde",
}

// SpawnVillage creates count villagers scattered around the village center,
// cycling through the archetype list so every personality is represented.
// All randomness comes from the injected source, so a fixed seed yields a
// fixed village.
func SpawnVillage(count int, center world.Position, rng *rand.Rand, now time.Time) []*Agent {
	out := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		name := givenNames[i%len(givenNames)]
		if i >= len(givenNames) {
			name = fmt.Sprintf("%s %d", name, i/len(givenNames)+1)
		}
		p := NewPersonality(Archetypes[i%len(Archetypes)])
		pos := world.Position{
			X: center.X + rng.Intn(11) - 5,
			Y: center.Y + rng.Intn(11) - 5,
		}
		out = append(out, NewAgent(name, p, pos, now))
	}
	return out
}
