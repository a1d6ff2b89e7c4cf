// Decision prompt generation frames the villager's personality and world
// snapshot for the model and pins down the expected JSON reply shape.
package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/talgya/villagers/internal/agents"
	"github.com/talgya/villagers/internal/construction"
	"github.com/talgya/villagers/internal/economy"
)

// personalityVoices describes each archetype in second person for the
// system prompt.
var personalityVoices = map[agents.Archetype]string{
	agents.Gatherer: `You are an industrious gatherer who loves collecting resources. You have
a keen nose for the best deposits, take satisfaction in a full storehouse,
prioritize whatever is scarce, and occasionally consider a storage building.`,

	agents.Builder: `You are a far-sighted builder who dreams of a thriving town. You plan
ahead, gather what a project needs before breaking ground, prefer variety
over repeating the same structure, and feel great pride at every completed
building.`,

	agents.Trader: `You are a shrewd trader who profits from exchange. You track what is
valuable, look for mutually beneficial deals with other villagers, stockpile
sought-after goods, and gather yourself only when no trade is on offer.`,

	agents.Explorer: `You are a restless explorer drawn to the unknown. You wander widely, are
curious about new deposits and buildings, dislike staying in one place, and
only occasionally pause to gather or build before moving on.`,

	agents.Guardian: `You are a loyal guardian whose duty is protecting the village. You favor
defensive structures like watchtowers, patrol near important buildings, and
stay wary of strangers without ever striking first.`,
}

// PromptContext is the situational data the prompt is rendered from.
type PromptContext struct {
	Agent     *agents.Agent
	Snapshot  *agents.Snapshot
	Neighbors int // cap on listed villagers
}

// BuildDecisionPrompt renders the system and user prompts for one decision.
func BuildDecisionPrompt(ctx PromptContext) (system, user string) {
	a := ctx.Agent
	voice, ok := personalityVoices[a.Personality.Archetype]
	if !ok {
		voice = personalityVoices[agents.Gatherer]
	}

	system = fmt.Sprintf(`You are %s, a villager living in a small shared world.

%s

Decide your next action from your personality and the current situation.`, a.Name, voice)

	var b strings.Builder
	fmt.Fprintf(&b, "Your inventory:\n- wood: %g\n- stone: %g\n- food: %g\n- gold: %g\n",
		a.Inventory.Wood, a.Inventory.Stone, a.Inventory.Food, a.Inventory.Gold)

	b.WriteString("\nNearby resource deposits:\n")
	if len(ctx.Snapshot.Nodes) == 0 {
		b.WriteString("- none within reach\n")
	}
	for i, n := range ctx.Snapshot.Nodes {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "- %s, %.1f remaining\n", n.Kind, n.Amount)
	}

	b.WriteString("\nNearby buildings:\n")
	if len(ctx.Snapshot.Buildings) == 0 {
		b.WriteString("- none\n")
	}
	for i, bl := range ctx.Snapshot.Buildings {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "- %s (owner %s)\n", bl.Kind, bl.OwnerID)
	}

	b.WriteString("\nNearby villagers:\n")
	listed := 0
	for _, other := range ctx.Snapshot.Agents {
		if other.ID == a.ID {
			continue
		}
		if listed == ctx.Neighbors {
			break
		}
		fmt.Fprintf(&b, "- %s (%s)\n", other.Name, other.Personality.Archetype)
		listed++
	}
	if listed == 0 {
		b.WriteString("- no one nearby\n")
	}

	buildable := affordableBuildings(a.Inventory)
	b.WriteString("\nBuildings you can afford right now: ")
	if len(buildable) == 0 {
		b.WriteString("none\n")
	} else {
		b.WriteString(strings.Join(buildable, ", ") + "\n")
	}

	b.WriteString(`
Choose one action:
1. gather - collect from a nearby deposit
2. build - construct a building you can afford
3. trade - look for a deal with another villager
4. explore - move to new ground
5. wait - rest and wait

Answer with JSON only, no other text:
{
  "action": "gather|build|trade|explore|wait",
  "target": "resource kind for gather, building type for build",
  "reason": "one short sentence"
}`)

	return system, b.String()
}

func affordableBuildings(inv economy.Inventory) []string {
	var out []string
	for kind, recipe := range construction.Recipes {
		if inv.Covers(recipe.Cost) {
			out = append(out, kind)
		}
	}
	// Stable listing for reproducible prompts.
	sort.Strings(out)
	return out
}
