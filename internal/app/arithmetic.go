package app

func addUint64Checked(a uint64, b uint64, field string) (uint64, error) {
	if a > ^uint64(0)-b {
		return 0, ErrArithmetic.Wrapf("%s overflows uint64", field)
	}
	return a + b, nil
}

func mulUint64Checked(a uint64, b uint64, field string) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > ^uint64(0)/b {
		return 0, ErrArithmetic.Wrapf("%s overflows uint64", field)
	}
	return a * b, nil
}

func addUint32Checked(a uint32, b uint32, field string) (uint32, error) {
	if a > ^uint32(0)-b {
		return 0, ErrArithmetic.Wrapf("%s overflows uint32", field)
	}
	return a + b, nil
}

// splitPot divides pot evenly among survivors. The remainder (dust) is
// always smaller than survivors and share*survivors + dust == pot.
func splitPot(pot uint64, survivors uint32) (share uint64, dust uint64, err error) {
	if survivors == 0 {
		return 0, 0, ErrNoSurvivors.Wrap("cannot split pot among zero survivors")
	}
	n := uint64(survivors)
	share = pot / n
	dust = pot % n
	paid, err := mulUint64Checked(share, n, "payout total")
	if err != nil {
		return 0, 0, err
	}
	if paid+dust != pot {
		return 0, 0, ErrArithmetic.Wrapf("split of %d lost value: %d*%d+%d", pot, share, n, dust)
	}
	return share, dust, nil
}
