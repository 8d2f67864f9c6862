// voxtool: утилиты для карт и моделей.
//
//	voxtool gen      -out map.vxl [-vsid 512 -maxz 256 -seed 1]
//	voxtool info     -in map.vxl|map.vxz|map.bsp
//	voxtool render   -in map.vxl -out frame.png [-w 640 -h 480 -lighting normal -pos x,y,z -yaw 0 -pitch 0]
//	voxtool kv6glb   -in model.kv6 -out model.glb
//	voxtool snapshot -in map.vxl -out map.vxz (и обратно)
//	voxtool bsp2vxl  -in map.bsp -out map.vxl
package main

import (
	"fmt"
	"os"

	"github.com/annel0/voxel-engine/internal/logging"
)

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"gen", "сгенерировать карту по умолчанию в VXL", runGen},
	{"info", "вывести сведения о карте", runInfo},
	{"render", "отрендерить кадр в PNG", runRender},
	{"kv6glb", "экспортировать модель KV6 в GLB", runKV6GLB},
	{"snapshot", "конвертировать VXL <-> сжатый снимок VXZ", runSnapshot},
	{"bsp2vxl", "вокселизировать карту BSP в VXL", runBSP2VXL},
}

func usage() {
	fmt.Fprintln(os.Stderr, "использование: voxtool <команда> [флаги]")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", c.name, c.usage)
	}
}

func main() {
	logging.LogDir = ""
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	for _, c := range commands {
		if c.name == os.Args[1] {
			if err := c.run(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "voxtool %s: %v\n", c.name, err)
				os.Exit(1)
			}
			return
		}
	}
	usage()
	os.Exit(2)
}
