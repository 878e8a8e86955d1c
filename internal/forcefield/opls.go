package forcefield

const (
	ch3  = "opls_135"
	ch2  = "opls_136"
	hc   = "opls_140"
	ca   = "opls_145"
	ha   = "opls_146"
	sulf = "opls_202"
)

var oplsTypes = []AtomType{
	{Name: ch3, Element: "C", Mass: 12.011, Charge: -0.18, Sigma: 0.350, Epsilon: 0.276144},
	{Name: ch2, Element: "C", Mass: 12.011, Charge: -0.12, Sigma: 0.350, Epsilon: 0.276144},
	{Name: hc, Element: "H", Mass: 1.008, Charge: 0.06, Sigma: 0.250, Epsilon: 0.125520},
	{Name: ca, Element: "C", Mass: 12.011, Charge: -0.115, Sigma: 0.355, Epsilon: 0.292880},
	{Name: ha, Element: "H", Mass: 1.008, Charge: 0.115, Sigma: 0.242, Epsilon: 0.125520},
	{Name: sulf, Element: "S", Mass: 32.06, Charge: -0.335, Sigma: 0.360, Epsilon: 1.046000},
}

var alkaneRules = []Rule{
	{Element: "C", Hydrogens: 3, Type: ch3},
	{Element: "C", Hydrogens: 2, Type: ch2},
	{Element: "H", Hydrogens: -1, Neighbor: ch3, Type: hc},
	{Element: "H", Hydrogens: -1, Neighbor: ch2, Type: hc},
}

var aromaticRules = []Rule{
	{Element: "C", Aromatic: true, Hydrogens: -1, Type: ca},
	{Element: "H", Hydrogens: -1, Neighbor: ca, Type: ha},
	{Element: "S", Hydrogens: 0, Type: sulf},
}

var alkaneBonds = map[string]BondType{
	pairKey(ch3, ch2): {K: 224262.4, R0: 0.1529},
	pairKey(ch2, ch2): {K: 224262.4, R0: 0.1529},
	pairKey(ch3, ch3): {K: 224262.4, R0: 0.1529},
	pairKey(ch3, hc):  {K: 284512.0, R0: 0.1090},
	pairKey(ch2, hc):  {K: 284512.0, R0: 0.1090},
}

var aromaticBonds = map[string]BondType{
	pairKey(ca, ca):   {K: 392459.2, R0: 0.1400},
	pairKey(ca, ha):   {K: 307105.6, R0: 0.1080},
	pairKey(ca, sulf): {K: 250000.0, R0: 0.1760},
}

var alkaneAngles = map[string]AngleType{
	tripleKey(ch3, ch2, ch2): {K: 488.273, Theta0: 1.96699},
	tripleKey(ch2, ch2, ch2): {K: 488.273, Theta0: 1.96699},
	tripleKey(ch3, ch2, ch3): {K: 488.273, Theta0: 1.96699},
	tripleKey(ch3, ch3, hc):  {K: 313.800, Theta0: 1.93208},
	tripleKey(ch2, ch3, hc):  {K: 313.800, Theta0: 1.93208},
	tripleKey(ch3, ch2, hc):  {K: 313.800, Theta0: 1.93208},
	tripleKey(ch2, ch2, hc):  {K: 313.800, Theta0: 1.93208},
	tripleKey(hc, ch3, hc):   {K: 276.144, Theta0: 1.88146},
	tripleKey(hc, ch2, hc):   {K: 276.144, Theta0: 1.88146},
}

var aromaticAngles = map[string]AngleType{
	tripleKey(ca, ca, ca):   {K: 527.184, Theta0: 2.09440},
	tripleKey(ca, ca, ha):   {K: 292.880, Theta0: 2.09440},
	tripleKey(ca, ca, sulf): {K: 585.760, Theta0: 2.09440},
	tripleKey(ca, sulf, ca): {K: 627.600, Theta0: 1.80500},
}

// OPLSAA returns the alkane and aromatic-sulfide subset of OPLS-AA.
func OPLSAA() *Table {
	return newTable("oplsaa",
		[][]Rule{alkaneRules, aromaticRules},
		[]map[string]BondType{alkaneBonds, aromaticBonds},
		[]map[string]AngleType{alkaneAngles, aromaticAngles})
}

// OPLSAAPPS returns only the parameters needed for PPS. The CA-S-CA angle
// is not part of stock OPLS-AA.
func OPLSAAPPS() *Table {
	return newTable("oplsaa-pps",
		[][]Rule{aromaticRules},
		[]map[string]BondType{aromaticBonds},
		[]map[string]AngleType{aromaticAngles})
}

func newTable(name string, rules [][]Rule, bonds []map[string]BondType, angles []map[string]AngleType) *Table {
	t := &Table{
		name:   name,
		types:  make(map[string]AtomType),
		bonds:  make(map[string]BondType),
		angles: make(map[string]AngleType),
	}
	for _, rs := range rules {
		t.rules = append(t.rules, rs...)
	}
	for _, r := range t.rules {
		for _, at := range oplsTypes {
			if at.Name == r.Type {
				t.types[at.Name] = at
			}
		}
	}
	for _, m := range bonds {
		for k, v := range m {
			t.bonds[k] = v
		}
	}
	for _, m := range angles {
		for k, v := range m {
			t.angles[k] = v
		}
	}
	return t
}
