package reputation

// sceneGate names a faction whose score must clear threshold before a
// scene whose id/title contains one of tokens is enterable.
type sceneGate struct {
	tokens    []string
	faction   string
	threshold int
	refusal   string
}

// sceneGates is the scene-access table: every locale category the source
// material gates by faction standing, as data rather than inline branches.
var sceneGates = []sceneGate{
	{
		tokens:    []string{"palais", "citadelle", "tribunal", "conseil", "caserne"},
		faction:   "Autorites",
		threshold: -10,
		refusal:   "Acces refuse: votre reputation avec les Autorites est trop basse.",
	},
	{
		tokens:    []string{"banque", "hotel_monnaies", "hôtel_monnaies", "marche", "marché"},
		faction:   "Marchands",
		threshold: -20,
		refusal:   "Les Marchands vous ferment leurs portes.",
	},
	{
		tokens:    []string{"academie", "académie", "laboratoire", "observatoire", "scriptoria"},
		faction:   "Arcanistes",
		threshold: -15,
		refusal:   "Les Arcanistes refusent de vous recevoir.",
	},
}
