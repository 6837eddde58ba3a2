// Command nescore is a minimal Ebitengine window that loads an NROM or
// UxROM game and runs it against the keyboard.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"nescore"
)

const (
	nesWidth  = 256
	nesHeight = 240
	winScale  = 3
)

// game adapts an *nescore.Emulator to ebiten.Game.
type game struct {
	emu   *nescore.Emulator
	image *ebiten.Image
	pixels []byte
}

func newGame(emu *nescore.Emulator) *game {
	return &game{
		emu:    emu,
		image:  ebiten.NewImage(nesWidth, nesHeight),
		pixels: make([]byte, nesWidth*nesHeight*4),
	}
}

var keyMappings = map[ebiten.Key]nescore.Button{
	ebiten.KeyZ:          nescore.ButtonA,
	ebiten.KeyX:          nescore.ButtonB,
	ebiten.KeyBackslash:  nescore.ButtonSelect,
	ebiten.KeyEnter:      nescore.ButtonStart,
	ebiten.KeyArrowUp:    nescore.ButtonUp,
	ebiten.KeyArrowDown:  nescore.ButtonDown,
	ebiten.KeyArrowLeft:  nescore.ButtonLeft,
	ebiten.KeyArrowRight: nescore.ButtonRight,
}

func (g *game) Update() error {
	for ebitenKey, button := range keyMappings {
		switch {
		case inpututil.IsKeyJustPressed(ebitenKey):
			g.emu.Press(1, button)
		case inpututil.IsKeyJustReleased(ebitenKey):
			g.emu.Release(1, button)
		}
	}

	g.emu.RunUntilFrame()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	fb := g.emu.Framebuffer()
	for i, paletteIndex := range fb {
		rgb := nescore.Palette[paletteIndex&0x3F]
		o := i * 4
		g.pixels[o] = rgb[0]
		g.pixels[o+1] = rgb[1]
		g.pixels[o+2] = rgb[2]
		g.pixels[o+3] = 0xFF
	}
	g.image.WritePixels(g.pixels)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(winScale, winScale)
	screen.DrawImage(g.image, op)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return nesWidth * winScale, nesHeight * winScale
}

func main() {
	romPath := flag.String("rom", "", "path to an NROM or UxROM .nes file")
	flag.Parse()

	if *romPath == "" {
		fmt.Println("usage: nescore -rom game.nes")
		os.Exit(1)
	}

	romBytes, err := os.ReadFile(*romPath)
	if err != nil {
		log.Fatalf("reading rom: %v", err)
	}

	emu, err := nescore.New(romBytes)
	if err != nil {
		log.Fatalf("loading rom: %v", err)
	}

	ebiten.SetWindowSize(nesWidth*winScale, nesHeight*winScale)
	ebiten.SetWindowTitle("nescore")
	ebiten.SetScreenClearedEveryFrame(false)

	g := newGame(emu)
	if err := ebiten.RunGame(g); err != nil {
		log.Fatalf("run: %v", err)
	}
}
